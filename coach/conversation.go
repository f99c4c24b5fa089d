package coach

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type MessageMetadata struct {
	IsError    bool
	ErrorText  string
	TokensUsed int
	LatencyMs  int64
}

// Message is immutable once appended. Corrections are new messages.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
	Metadata  *MessageMetadata
}

// ConversationStore is the append-only message log for one conversation.
// Timestamps are non-decreasing even if the wall clock steps backwards.
type ConversationStore struct {
	mu       sync.Mutex
	messages []Message
	lastTime time.Time
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{}
}

func (s *ConversationStore) Append(role Role, content string, metadata *MessageMetadata) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(s.lastTime) {
		now = s.lastTime
	}
	s.lastTime = now

	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
		Metadata:  metadata,
	}
	s.messages = append(s.messages, msg)
	return msg
}

// Restore seeds the log with previously persisted messages, oldest
// first. Used to rebuild a conversation after a restart; call before
// any Append so restored timestamps stay behind new ones.
func (s *ConversationStore) Restore(msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range msgs {
		if msg.CreatedAt.After(s.lastTime) {
			s.lastTime = msg.CreatedAt
		}
		s.messages = append(s.messages, msg)
	}
}

// SnapshotLast returns up to n most recent messages in chronological order.
func (s *ConversationStore) SnapshotLast(n int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		return nil
	}
	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

// HistoryWindow returns up to n most recent non-system messages in
// chronological order. System messages stay in the log for audit but
// never reach prompt history.
func (s *ConversationStore) HistoryWindow(n int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		return nil
	}
	out := make([]Message, 0, n)
	for i := len(s.messages) - 1; i >= 0 && len(out) < n; i-- {
		if s.messages[i].Role == RoleSystem {
			continue
		}
		out = append(out, s.messages[i])
	}
	// collected newest-first, flip back to chronological
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *ConversationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
