package coach

import (
	"context"
	"errors"
	"fmt"
	"oratodev/logger"
	"oratodev/modelapi"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when a generate call is already in flight for the
// same conversation. One call at a time per user; callers retry.
var ErrBusy = errors.New("a coach request is already in flight for this conversation")

// Backend is the narrow contract over whatever generative model is
// plugged in: one prompt out, text or failure back.
type Backend interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// Analyzer produces a structured JSON scoring for a recording
// transcript, typically through model function calling.
type Analyzer interface {
	AnalyzeSpeech(ctx context.Context, transcript string) (string, error)
}

// Store is the persistence collaborator. All methods may fail; the
// coach degrades to an empty context rather than surfacing the error.
type Store interface {
	LoadProfile(ctx context.Context, userID int64) (*ProfileSummary, error)
	LoadProgress(ctx context.Context, userID int64) (*ProgressSummary, error)
	LoadDiagnostic(ctx context.Context, userID int64) (*int, error)
	LoadMessages(ctx context.Context, userID int64, n int) ([]Message, error)
	AppendMessage(ctx context.Context, userID int64, msg Message) error
}

type CoachConnectProps struct {
	Logger   *logger.LogMiddleware
	Backend  Backend
	Analyzer Analyzer
	Store    Store
}

type session struct {
	conversation *ConversationStore
	simulation   *SimulationState
	gate         *semaphore.Weighted
}

// Coach orchestrates context building, prompt composition, the backend
// round trip and response parsing behind typed operations. It is the
// only writer to the conversation stores and simulation states it owns.
type Coach struct {
	logger   *logger.LogMiddleware
	backend  Backend
	analyzer Analyzer
	store    Store

	mu       sync.Mutex
	sessions map[int64]*session

	// Counts silently absorbed backend/parse failures so quality masking
	// shows up in metrics instead of nowhere.
	fallbacks atomic.Int64
}

func Connect(ctx context.Context, args CoachConnectProps) *Coach {
	tracer := otel.Tracer("coach/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	args.Logger.Logger(ctx).Info("[Coach] Coach engine starting",
		zap.Bool("analyzer_available", args.Analyzer != nil),
		zap.Bool("store_available", args.Store != nil),
	)

	return &Coach{
		logger:   args.Logger,
		backend:  args.Backend,
		analyzer: args.Analyzer,
		store:    args.Store,
		sessions: make(map[int64]*session),
	}
}

func (c *Coach) session(ctx context.Context, userID int64) *session {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[userID]
	if !ok {
		sess = &session{
			conversation: NewConversationStore(),
			simulation:   NewSimulationState(),
			gate:         semaphore.NewWeighted(1),
		}
		c.hydrate(ctx, userID, sess)
		c.sessions[userID] = sess
	}
	return sess
}

// hydrate rebuilds the in-memory conversation log from persisted
// messages so history survives restarts. A failed load degrades to an
// empty log, same as every other store failure.
func (c *Coach) hydrate(ctx context.Context, userID int64, sess *session) {
	if c.store == nil {
		return
	}
	msgs, err := c.store.LoadMessages(ctx, userID, 2*HistoryWindowSize)
	if err != nil {
		c.logger.Logger(ctx).Warn("[Coach] Could not restore conversation history",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		return
	}
	sess.conversation.Restore(msgs)
}

type CoachReply struct {
	Message              Message
	ShouldDecrementQuota bool
	UsedFallback         bool
}

// Converse runs one open coaching turn. Backend failures never surface:
// the reply degrades to the fixed fallback text and the quota flag
// stays unset. A second call while one is in flight returns ErrBusy.
func (c *Coach) Converse(ctx context.Context, userID int64, userText string) (*CoachReply, error) {
	tracer := otel.Tracer("coach/Converse")
	ctx, span := tracer.Start(ctx, "Converse")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int("user_text.length", len(userText)),
	)

	sess := c.session(ctx, userID)
	if !sess.gate.TryAcquire(1) {
		span.AddEvent("Conversation busy")
		return nil, ErrBusy
	}
	defer sess.gate.Release(1)

	cctx := c.buildContext(ctx, userID, sess)
	history := sess.conversation.HistoryWindow(HistoryWindowSize)
	prompt := ComposeCoachingPrompt(cctx, history, userText)

	start := time.Now()
	raw, err := c.backend.Generate(ctx, modelapi.COACH_SYSTEM_PROMPT, prompt)
	latency := time.Since(start)

	// Cancelled before a reply: leave the log untouched so the user
	// message never sits there without its paired answer.
	if ctx.Err() != nil {
		span.RecordError(ctx.Err())
		return nil, ctx.Err()
	}

	usedFallback := err != nil || strings.TrimSpace(raw) == ""
	reply := ParseReply(raw)
	if err != nil {
		reply = modelapi.FALLBACK_REPLY
		span.RecordError(err)
	}
	if usedFallback {
		c.recordFallback(ctx, "converse", err)
	}

	userMsg := sess.conversation.Append(RoleUser, userText, nil)
	assistantMsg := sess.conversation.Append(RoleAssistant, reply, &MessageMetadata{
		IsError:   usedFallback,
		ErrorText: errText(err),
		LatencyMs: latency.Milliseconds(),
	})
	c.persist(ctx, userID, userMsg)
	c.persist(ctx, userID, assistantMsg)

	span.SetAttributes(
		attribute.Bool("used_fallback", usedFallback),
		attribute.Int64("latency_ms", latency.Milliseconds()),
	)

	return &CoachReply{
		Message:              assistantMsg,
		ShouldDecrementQuota: !usedFallback,
		UsedFallback:         usedFallback,
	}, nil
}

// SuggestActions returns 1-5 short practice suggestions. It never
// fails: any backend or format trouble degrades to the default set.
func (c *Coach) SuggestActions(ctx context.Context, userID int64) []string {
	tracer := otel.Tracer("coach/SuggestActions")
	ctx, span := tracer.Start(ctx, "SuggestActions")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", userID))

	sess := c.session(ctx, userID)
	cctx := c.buildContext(ctx, userID, sess)
	prompt := ComposeQuickActionsPrompt(cctx)

	raw, err := c.backend.Generate(ctx, modelapi.QUICK_ACTIONS_PROMPT, prompt)
	if err != nil {
		c.recordFallback(ctx, "suggest_actions", err)
		span.RecordError(err)
		return modelapi.DefaultQuickActions()
	}

	actions, usedDefault := parseQuickActions(raw)
	if usedDefault {
		c.recordFallback(ctx, "suggest_actions", nil)
	}
	span.SetAttributes(attribute.Int("actions.count", len(actions)))
	return actions
}

type SimulationStartResult struct {
	Scenario SimulationScenario
	Step     SimulationStep
}

// StartSimulation activates a catalog scenario for the user and returns
// the first step. The previous run must be exited first.
func (c *Coach) StartSimulation(ctx context.Context, userID int64, scenarioID string) (*SimulationStartResult, error) {
	tracer := otel.Tracer("coach/StartSimulation")
	ctx, span := tracer.Start(ctx, "StartSimulation")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.String("scenario.id", scenarioID),
	)

	scenario, err := FindScenario(scenarioID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	sess := c.session(ctx, userID)
	if err := sess.simulation.Start(scenario); err != nil {
		span.RecordError(err)
		return nil, err
	}

	c.logger.Logger(ctx).Info("[Coach] Simulation started",
		zap.Int64("user_id", userID),
		zap.String("scenario_id", scenario.ID),
		zap.Int("steps", len(scenario.Steps)),
	)

	return &SimulationStartResult{Scenario: scenario, Step: scenario.Steps[0]}, nil
}

type SimulationTurnResult struct {
	StepNumber int
	CoachText  string
	Completed  bool
	NextHint   string
	Feedback   string
}

// SubmitSimulationTurn runs one scripted round: persona reply from the
// backend, state advance, and coach feedback after the final round.
// Returns ErrInvalidState when no scenario is awaiting input.
func (c *Coach) SubmitSimulationTurn(ctx context.Context, userID int64, userText string) (*SimulationTurnResult, error) {
	tracer := otel.Tracer("coach/SubmitSimulationTurn")
	ctx, span := tracer.Start(ctx, "SubmitSimulationTurn")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int("user_text.length", len(userText)),
	)

	sess := c.session(ctx, userID)
	if !sess.gate.TryAcquire(1) {
		span.AddEvent("Conversation busy")
		return nil, ErrBusy
	}
	defer sess.gate.Release(1)

	step, err := sess.simulation.CurrentStep()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	scenario := *sess.simulation.Scenario()
	rounds := sess.simulation.Rounds()

	prompt := ComposeSimulationPrompt(scenario, step, rounds, userText)
	raw, genErr := c.backend.Generate(ctx, personaPrompt(scenario.Persona), prompt)
	if ctx.Err() != nil {
		span.RecordError(ctx.Err())
		return nil, ctx.Err()
	}

	reply := ParseSimulationReply(raw)
	if genErr != nil {
		reply = modelapi.FALLBACK_SIMULATION_REPLY
		c.recordFallback(ctx, "simulation_turn", genErr)
		span.RecordError(genErr)
	}

	completed, err := sess.simulation.RecordTurn(userText, reply)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &SimulationTurnResult{
		StepNumber: step.StepNumber,
		CoachText:  reply,
		Completed:  completed,
	}

	if completed {
		result.Feedback = c.simulationFeedback(ctx, scenario, sess.simulation.Rounds())
	} else {
		result.NextHint = scenario.Steps[step.StepNumber+1].Hint
	}

	span.SetAttributes(attribute.Bool("completed", completed))
	return result, nil
}

// ExitSimulation discards the active run from any phase and hands the
// round history back for export.
func (c *Coach) ExitSimulation(ctx context.Context, userID int64) []SimulationRound {
	tracer := otel.Tracer("coach/ExitSimulation")
	ctx, span := tracer.Start(ctx, "ExitSimulation")
	defer span.End()

	sess := c.session(ctx, userID)
	rounds := sess.simulation.Exit()

	c.logger.Logger(ctx).Info("[Coach] Simulation exited",
		zap.Int64("user_id", userID),
		zap.Int("rounds_discarded", len(rounds)),
	)
	return rounds
}

// AnalyzeRecording scores an already-transcribed practice recording.
// It always returns a usable result; a failed analysis yields the
// all-zero default.
func (c *Coach) AnalyzeRecording(ctx context.Context, userID int64, transcript string) VoiceAnalysisResult {
	tracer := otel.Tracer("coach/AnalyzeRecording")
	ctx, span := tracer.Start(ctx, "AnalyzeRecording")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int("transcript.length", len(transcript)),
	)

	var raw string
	var err error
	if c.analyzer != nil {
		raw, err = c.analyzer.AnalyzeSpeech(ctx, transcript)
	} else {
		raw, err = c.backend.Generate(ctx, modelapi.VOICE_ANALYSIS_PROMPT, ComposeVoiceAnalysisPrompt(transcript))
	}
	if err != nil {
		c.recordFallback(ctx, "analyze_recording", err)
		span.RecordError(err)
		return DefaultVoiceAnalysis()
	}

	result := ParseVoiceAnalysis(raw)
	span.SetAttributes(attribute.Int("analysis.overall", result.Overall))
	return result
}

// History exposes a bounded chronological window for surfaces.
func (c *Coach) History(ctx context.Context, userID int64, n int) []Message {
	return c.session(ctx, userID).conversation.SnapshotLast(n)
}

// Scenarios lists the exercise catalog for surfaces.
func (c *Coach) Scenarios() []SimulationScenario {
	return BuiltinScenarios()
}

// FallbackCount reports how many operations degraded to a fallback
// value since startup.
func (c *Coach) FallbackCount() int64 {
	return c.fallbacks.Load()
}

func (c *Coach) buildContext(ctx context.Context, userID int64, sess *session) ConversationContext {
	cctx := EmptyContext()
	if sess.conversation.Len() > 0 {
		cctx.RecentActivity = "In an ongoing coaching conversation."
	}
	if c.store == nil {
		return cctx
	}

	log := c.logger.Logger(ctx)
	if profile, err := c.store.LoadProfile(ctx, userID); err != nil {
		log.Warn("[Coach] Could not load profile for context", zap.Error(err), zap.Int64("user_id", userID))
	} else {
		cctx.Profile = profile
	}

	if progress, err := c.store.LoadProgress(ctx, userID); err != nil {
		log.Warn("[Coach] Could not load progress for context", zap.Error(err), zap.Int64("user_id", userID))
	} else if progress != nil {
		cctx.Progress = progress
		cctx.WeakestSkills = weakestSkills(progress.SkillLevels)
		if progress.TotalExercises > 0 {
			cctx.RecentActivity = fmt.Sprintf("Has completed %d practice exercises so far.", progress.TotalExercises)
		}
	}

	if level, err := c.store.LoadDiagnostic(ctx, userID); err != nil {
		log.Warn("[Coach] Could not load diagnostic for context", zap.Error(err), zap.Int64("user_id", userID))
	} else {
		cctx.DiagnosticLevel = level
	}

	return cctx
}

func (c *Coach) simulationFeedback(ctx context.Context, scenario SimulationScenario, rounds []SimulationRound) string {
	prompt := ComposeSimulationFeedbackPrompt(scenario, rounds)
	raw, err := c.backend.Generate(ctx, modelapi.SIMULATION_FEEDBACK_PROMPT, prompt)
	if err != nil {
		c.recordFallback(ctx, "simulation_feedback", err)
		return "Good work completing the exercise. Review the transcript and note one moment you would phrase differently next time."
	}
	return ParseReply(raw)
}

func (c *Coach) persist(ctx context.Context, userID int64, msg Message) {
	if c.store == nil {
		return
	}
	if err := c.store.AppendMessage(ctx, userID, msg); err != nil {
		c.logger.Logger(ctx).Warn("[Coach] Could not persist message",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("message_id", msg.ID),
		)
	}
}

func (c *Coach) recordFallback(ctx context.Context, operation string, err error) {
	c.fallbacks.Add(1)
	c.logger.Logger(ctx).Warn("[Coach] Falling back to default output",
		zap.String("operation", operation),
		zap.Error(err),
		zap.Int64("fallbacks_total", c.fallbacks.Load()),
	)
}

func personaPrompt(persona SimulationPersona) string {
	if persona == PersonaCustomer {
		return modelapi.SIMULATION_CUSTOMER_PROMPT
	}
	return modelapi.SIMULATION_DEBATE_PROMPT
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func weakestSkills(levels []SkillLevel) []SkillLevel {
	if len(levels) == 0 {
		return nil
	}
	sorted := make([]SkillLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	if len(sorted) > MaxWeakestSkills {
		sorted = sorted[:MaxWeakestSkills]
	}
	return sorted
}
