package coach

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendThenSnapshotRoundTrip(t *testing.T) {
	store := NewConversationStore()
	appended := store.Append(RoleUser, "hello coach", nil)

	snapshot := store.SnapshotLast(1)
	require.Len(t, snapshot, 1)
	assert.Equal(t, appended, snapshot[0])
	assert.NotEmpty(t, snapshot[0].ID)
}

func TestTimestampsNonDecreasing(t *testing.T) {
	store := NewConversationStore()
	for i := 0; i < 50; i++ {
		store.Append(RoleUser, fmt.Sprintf("message %d", i), nil)
	}

	messages := store.SnapshotLast(50)
	require.Len(t, messages, 50)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
}

func TestSnapshotLastReturnsChronological(t *testing.T) {
	store := NewConversationStore()
	store.Append(RoleUser, "first", nil)
	store.Append(RoleAssistant, "second", nil)
	store.Append(RoleUser, "third", nil)

	last2 := store.SnapshotLast(2)
	require.Len(t, last2, 2)
	assert.Equal(t, "second", last2[0].Content)
	assert.Equal(t, "third", last2[1].Content)
}

func TestHistoryWindowExcludesSystem(t *testing.T) {
	store := NewConversationStore()
	store.Append(RoleSystem, "audit note", nil)
	store.Append(RoleUser, "hi", nil)
	store.Append(RoleAssistant, "hello", nil)

	window := store.HistoryWindow(10)
	require.Len(t, window, 2)
	for _, msg := range window {
		assert.NotEqual(t, RoleSystem, msg.Role)
	}

	// still retained in the raw log
	assert.Equal(t, 3, store.Len())
}

func TestHistoryWindowCap(t *testing.T) {
	store := NewConversationStore()
	for i := 0; i < 25; i++ {
		store.Append(RoleUser, fmt.Sprintf("u%d", i), nil)
	}

	window := store.HistoryWindow(HistoryWindowSize)
	require.Len(t, window, HistoryWindowSize)
	assert.Equal(t, "u15", window[0].Content)
	assert.Equal(t, "u24", window[len(window)-1].Content)
}

func TestRestoreSeedsLogBeforeAppends(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	store := NewConversationStore()
	store.Restore([]Message{
		{ID: "r1", Role: RoleUser, Content: "restored question", CreatedAt: base},
		{ID: "r2", Role: RoleAssistant, Content: "restored answer", CreatedAt: base.Add(time.Second)},
	})

	appended := store.Append(RoleUser, "fresh message", nil)

	messages := store.SnapshotLast(10)
	require.Len(t, messages, 3)
	assert.Equal(t, "r1", messages[0].ID)
	assert.Equal(t, "r2", messages[1].ID)
	// restored timestamps stay behind new appends
	assert.False(t, appended.CreatedAt.Before(messages[1].CreatedAt))
}

func TestClear(t *testing.T) {
	store := NewConversationStore()
	store.Append(RoleUser, "bye", nil)
	store.Clear()
	assert.Zero(t, store.Len())
	assert.Empty(t, store.SnapshotLast(5))
}
