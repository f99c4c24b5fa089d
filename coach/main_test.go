package coach

import (
	"context"
	"errors"
	"oratodev/logger"
	"oratodev/modelapi"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	fn    func(systemPrompt, userPrompt string) (string, error)
}

func (f *fakeBackend) Generate(_ context.Context, systemPrompt string, userPrompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(systemPrompt, userPrompt)
}

type fakeStore struct {
	profile   *ProfileSummary
	progress  *ProgressSummary
	messages  []Message
	persisted []Message
	loadErr   error
}

func (f *fakeStore) LoadProfile(context.Context, int64) (*ProfileSummary, error) {
	return f.profile, f.loadErr
}

func (f *fakeStore) LoadProgress(context.Context, int64) (*ProgressSummary, error) {
	return f.progress, f.loadErr
}

func (f *fakeStore) LoadDiagnostic(context.Context, int64) (*int, error) {
	return nil, f.loadErr
}

func (f *fakeStore) LoadMessages(context.Context, int64, int) ([]Message, error) {
	return f.messages, f.loadErr
}

func (f *fakeStore) AppendMessage(_ context.Context, _ int64, msg Message) error {
	f.persisted = append(f.persisted, msg)
	return nil
}

func newTestCoach(t *testing.T, backend Backend, store Store) *Coach {
	t.Helper()
	logMiddleware := logger.Connect(logger.LoggerConnectProps{Production: false})
	return Connect(context.Background(), CoachConnectProps{
		Logger:  logMiddleware,
		Backend: backend,
		Store:   store,
	})
}

func TestConverseHappyPath(t *testing.T) {
	backend := &fakeBackend{fn: func(system, user string) (string, error) {
		assert.Contains(t, system, "Orato")
		assert.Contains(t, user, "how do I project my voice?")
		return "Stand tall and breathe from your diaphragm. Try a hallway echo drill today.", nil
	}}
	store := &fakeStore{profile: &ProfileSummary{Goal: "Lead meetings"}}
	c := newTestCoach(t, backend, store)

	reply, err := c.Converse(context.Background(), 1, "how do I project my voice?")
	require.NoError(t, err)
	assert.True(t, reply.ShouldDecrementQuota)
	assert.False(t, reply.UsedFallback)
	assert.Contains(t, reply.Message.Content, "diaphragm")

	// both the user line and the reply landed in the log and the store
	history := c.History(context.Background(), 1, 10)
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, RoleAssistant, history[1].Role)
	assert.Len(t, store.persisted, 2)
}

func TestConverseNeverReturnsEmptyReply(t *testing.T) {
	cases := map[string]func(string, string) (string, error){
		"backend failure": func(string, string) (string, error) { return "", errors.New("model down") },
		"empty payload":   func(string, string) (string, error) { return "", nil },
		"whitespace":      func(string, string) (string, error) { return "  \n ", nil },
	}

	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestCoach(t, &fakeBackend{fn: fn}, nil)
			reply, err := c.Converse(context.Background(), 7, "hello")
			require.NoError(t, err)
			assert.NotEmpty(t, reply.Message.Content)
			assert.True(t, reply.UsedFallback)
			assert.False(t, reply.ShouldDecrementQuota)
		})
	}
}

func TestConverseFallbackCountsAreObservable(t *testing.T) {
	c := newTestCoach(t, &fakeBackend{fn: func(string, string) (string, error) {
		return "", errors.New("timeout")
	}}, nil)

	require.Zero(t, c.FallbackCount())
	_, err := c.Converse(context.Background(), 1, "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.FallbackCount())
}

func TestConverseCountsBlankPayloadAsFallback(t *testing.T) {
	c := newTestCoach(t, &fakeBackend{fn: func(string, string) (string, error) {
		return "  \n ", nil
	}}, nil)

	reply, err := c.Converse(context.Background(), 1, "hi")
	require.NoError(t, err)
	assert.True(t, reply.UsedFallback)
	assert.Equal(t, int64(1), c.FallbackCount())
}

func TestSuggestActionsCountsDefaultSubstitution(t *testing.T) {
	c := newTestCoach(t, &fakeBackend{fn: func(string, string) (string, error) {
		return "sure! here are some ideas", nil
	}}, nil)

	actions := c.SuggestActions(context.Background(), 1)
	assert.Equal(t, modelapi.DefaultQuickActions(), actions)
	assert.Equal(t, int64(1), c.FallbackCount())
}

func TestConverseRejectsConcurrentCalls(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := &fakeBackend{fn: func(string, string) (string, error) {
		close(entered)
		<-release
		return "done", nil
	}}
	c := newTestCoach(t, backend, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Converse(context.Background(), 1, "first")
		done <- err
	}()

	<-entered
	_, err := c.Converse(context.Background(), 1, "second")
	assert.ErrorIs(t, err, ErrBusy)

	// other conversations are unaffected
	other := newTestCoach(t, &fakeBackend{fn: func(string, string) (string, error) { return "ok", nil }}, nil)
	_, err = other.Converse(context.Background(), 2, "hello")
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestConverseCancelledLeavesLogUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &fakeBackend{fn: func(string, string) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	c := newTestCoach(t, backend, nil)

	_, err := c.Converse(ctx, 1, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.History(context.Background(), 1, 10))
}

func TestConverseRestoresHistoryFromStore(t *testing.T) {
	var captured string
	backend := &fakeBackend{fn: func(system, user string) (string, error) {
		captured = user
		return "Welcome back. Let's build on that toast.", nil
	}}
	base := time.Now().UTC().Add(-time.Hour)
	store := &fakeStore{messages: []Message{
		{ID: "m1", Role: RoleUser, Content: "yesterday I practiced my wedding toast", CreatedAt: base},
		{ID: "m2", Role: RoleAssistant, Content: "Strong opening, slow the middle down", CreatedAt: base.Add(time.Second)},
	}}
	c := newTestCoach(t, backend, store)

	_, err := c.Converse(context.Background(), 1, "what should I work on today?")
	require.NoError(t, err)

	// restored turns reach the prompt history
	assert.Contains(t, captured, "yesterday I practiced my wedding toast")
	assert.Contains(t, captured, "Strong opening, slow the middle down")

	// and the surface view: 2 restored + the new pair
	history := c.History(context.Background(), 1, 10)
	require.Len(t, history, 4)
	assert.Equal(t, "m1", history[0].ID)
	assert.Equal(t, "m2", history[1].ID)
}

func TestSuggestActionsAlwaysBounded(t *testing.T) {
	cases := map[string]func(string, string) (string, error){
		"well formed": func(string, string) (string, error) {
			return "- Practice vowels\n- Record a story\n- Slow down\n- Breathe deeply\n- Smile while speaking", nil
		},
		"garbage":  func(string, string) (string, error) { return "sure! here are some ideas", nil },
		"failure":  func(string, string) (string, error) { return "", errors.New("down") },
		"overlong": func(string, string) (string, error) { return strings.Repeat("- an action\n", 20), nil },
	}

	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestCoach(t, &fakeBackend{fn: fn}, nil)
			actions := c.SuggestActions(context.Background(), 1)
			require.NotEmpty(t, actions)
			assert.LessOrEqual(t, len(actions), MaxQuickActions)
			for _, action := range actions {
				assert.LessOrEqual(t, len(strings.Fields(action)), 8)
			}
		})
	}
}

func TestSimulationFullFlow(t *testing.T) {
	backend := &fakeBackend{fn: func(system, user string) (string, error) {
		if strings.Contains(system, "reviewing the practice round") {
			return "Strong arguments. Next time, land your closing line faster.", nil
		}
		return "That point ignores the cost of context switching.", nil
	}}
	c := newTestCoach(t, backend, nil)

	scenario := BuiltinScenarios()[0]
	start, err := c.StartSimulation(context.Background(), 1, scenario.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, start.Step.StepNumber)

	var last *SimulationTurnResult
	for i := 0; i < len(scenario.Steps); i++ {
		last, err = c.SubmitSimulationTurn(context.Background(), 1, "my argument")
		require.NoError(t, err)
		assert.Equal(t, i, last.StepNumber)
		assert.NotEmpty(t, last.CoachText)
		if i < len(scenario.Steps)-1 {
			assert.False(t, last.Completed)
			assert.NotEmpty(t, last.NextHint)
		}
	}

	require.True(t, last.Completed)
	assert.Contains(t, last.Feedback, "closing line")

	// completed run rejects further turns until exited
	_, err = c.SubmitSimulationTurn(context.Background(), 1, "one more")
	assert.ErrorIs(t, err, ErrInvalidState)

	rounds := c.ExitSimulation(context.Background(), 1)
	assert.Len(t, rounds, len(scenario.Steps))

	// back to idle, restart works
	_, err = c.StartSimulation(context.Background(), 1, scenario.ID)
	assert.NoError(t, err)
}

func TestSimulationTurnWithoutScenario(t *testing.T) {
	c := newTestCoach(t, &fakeBackend{fn: func(string, string) (string, error) { return "x", nil }}, nil)
	_, err := c.SubmitSimulationTurn(context.Background(), 1, "hello?")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStartSimulationUnknownScenario(t *testing.T) {
	c := newTestCoach(t, &fakeBackend{fn: func(string, string) (string, error) { return "x", nil }}, nil)
	_, err := c.StartSimulation(context.Background(), 1, "nope")
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestSimulationTurnSurvivesBackendFailure(t *testing.T) {
	backend := &fakeBackend{fn: func(string, string) (string, error) { return "", errors.New("down") }}
	c := newTestCoach(t, backend, nil)

	_, err := c.StartSimulation(context.Background(), 1, "debate-remote-work")
	require.NoError(t, err)

	turn, err := c.SubmitSimulationTurn(context.Background(), 1, "my opener")
	require.NoError(t, err)
	assert.Equal(t, modelapi.FALLBACK_SIMULATION_REPLY, turn.CoachText)
	assert.False(t, turn.Completed)
}

func TestAnalyzeRecordingAlwaysReturnsResult(t *testing.T) {
	backend := &fakeBackend{fn: func(string, string) (string, error) { return "", errors.New("down") }}
	c := newTestCoach(t, backend, nil)

	result := c.AnalyzeRecording(context.Background(), 1, "um so today I want to talk about")
	assert.Equal(t, DefaultVoiceAnalysis(), result)
	assert.Equal(t, int64(1), c.FallbackCount())
}

func TestAnalyzeRecordingParsesBackendJSON(t *testing.T) {
	backend := &fakeBackend{fn: func(string, string) (string, error) {
		return `{"diction": 70, "overall": 65, "strengths": ["good energy"], "tip": "Cut the filler words."}`, nil
	}}
	c := newTestCoach(t, backend, nil)

	result := c.AnalyzeRecording(context.Background(), 1, "transcript")
	assert.Equal(t, 70, result.Diction)
	assert.Equal(t, 65, result.Overall)
	assert.Equal(t, "Cut the filler words.", result.Tip)
}

func TestContextReachesPrompt(t *testing.T) {
	var captured string
	backend := &fakeBackend{fn: func(system, user string) (string, error) {
		captured = user
		return "reply text here", nil
	}}
	store := &fakeStore{
		profile: &ProfileSummary{Goal: "Win pitches", DailyMinutes: 10},
		progress: &ProgressSummary{
			Streak:         4,
			TotalExercises: 9,
			SkillLevels:    []SkillLevel{{"diction", 80}, {"tempo", 30}},
		},
	}
	c := newTestCoach(t, backend, store)

	_, err := c.Converse(context.Background(), 1, "hello")
	require.NoError(t, err)

	assert.Contains(t, captured, "Win pitches")
	assert.Contains(t, captured, "Current streak: 4 days")
	// weakest skill derived from the lowest level
	assert.Contains(t, captured, "tempo (30)")
}
