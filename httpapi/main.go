package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"oratodev/coach"
	"oratodev/database/postgres"
	"oratodev/logger"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type HttpApiConnectProps struct {
	Logger *logger.LogMiddleware
	Coach  *coach.Coach
	DB     *postgres.Database
}

type HttpApi struct {
	logger *logger.LogMiddleware
	coach  *coach.Coach
	db     *postgres.Database
}

func Connect(ctx context.Context, args HttpApiConnectProps) *HttpApi {
	return &HttpApi{logger: args.Logger, coach: args.Coach, db: args.DB}
}

// Router mounts the coach operations. Engine errors map onto statuses:
// Busy 429, InvalidState 409, InvalidScenario 400, UnknownScenario 404.
func (h *HttpApi) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/scenarios", h.listScenarios)
	r.Get("/metrics/fallbacks", h.fallbackCount)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Post("/converse", h.converse)
		r.Get("/actions", h.suggestActions)
		r.Get("/history", h.history)
		r.Post("/analysis", h.analyze)
		r.Put("/profile", h.saveProfile)
		r.Put("/progress", h.saveProgress)
		r.Post("/diagnostic", h.saveDiagnostic)
		r.Route("/simulation", func(r chi.Router) {
			r.Post("/start", h.startSimulation)
			r.Post("/turn", h.submitTurn)
			r.Post("/exit", h.exitSimulation)
		})
	})

	return r
}

type converseRequest struct {
	Text string `json:"text"`
}

type converseResponse struct {
	Reply                string `json:"reply"`
	MessageID            string `json:"messageId"`
	ShouldDecrementQuota bool   `json:"shouldDecrementQuota"`
	UsedFallback         bool   `json:"usedFallback"`
}

func (h *HttpApi) converse(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req converseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		h.writeError(r.Context(), w, http.StatusBadRequest, "text is required")
		return
	}

	reply, err := h.coach.Converse(r.Context(), userID, req.Text)
	if err != nil {
		h.writeEngineError(r.Context(), w, err)
		return
	}

	h.writeJSON(r.Context(), w, http.StatusOK, converseResponse{
		Reply:                reply.Message.Content,
		MessageID:            reply.Message.ID,
		ShouldDecrementQuota: reply.ShouldDecrementQuota,
		UsedFallback:         reply.UsedFallback,
	})
}

func (h *HttpApi) suggestActions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	actions := h.coach.SuggestActions(r.Context(), userID)
	h.writeJSON(r.Context(), w, http.StatusOK, map[string][]string{"actions": actions})
}

func (h *HttpApi) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	type messageView struct {
		ID        string `json:"id"`
		Role      string `json:"role"`
		Content   string `json:"content"`
		CreatedAt string `json:"createdAt"`
	}
	messages := h.coach.History(r.Context(), userID, limit)
	views := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, messageView{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"messages": views})
}

func (h *HttpApi) listScenarios(w http.ResponseWriter, r *http.Request) {
	type scenarioView struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Steps       int    `json:"steps"`
	}
	var views []scenarioView
	for _, sc := range h.coach.Scenarios() {
		views = append(views, scenarioView{ID: sc.ID, Title: sc.Title, Description: sc.Description, Steps: len(sc.Steps)})
	}
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"scenarios": views})
}

type startSimulationRequest struct {
	ScenarioID string `json:"scenarioId"`
}

func (h *HttpApi) startSimulation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req startSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScenarioID == "" {
		h.writeError(r.Context(), w, http.StatusBadRequest, "scenarioId is required")
		return
	}

	result, err := h.coach.StartSimulation(r.Context(), userID, req.ScenarioID)
	if err != nil {
		h.writeEngineError(r.Context(), w, err)
		return
	}

	h.writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"scenarioId": result.Scenario.ID,
		"title":      result.Scenario.Title,
		"stepNumber": result.Step.StepNumber,
		"hint":       result.Step.Hint,
	})
}

type turnRequest struct {
	Text string `json:"text"`
}

func (h *HttpApi) submitTurn(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		h.writeError(r.Context(), w, http.StatusBadRequest, "text is required")
		return
	}

	turn, err := h.coach.SubmitSimulationTurn(r.Context(), userID, req.Text)
	if err != nil {
		h.writeEngineError(r.Context(), w, err)
		return
	}

	h.writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"stepNumber": turn.StepNumber,
		"coachText":  turn.CoachText,
		"completed":  turn.Completed,
		"nextHint":   turn.NextHint,
		"feedback":   turn.Feedback,
	})
}

func (h *HttpApi) exitSimulation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	rounds := h.coach.ExitSimulation(r.Context(), userID)
	type roundView struct {
		UserText  string `json:"userText"`
		CoachText string `json:"coachText"`
	}
	views := make([]roundView, 0, len(rounds))
	for _, round := range rounds {
		views = append(views, roundView{UserText: round.UserText, CoachText: round.CoachText})
	}
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"rounds": views})
}

type analyzeRequest struct {
	Transcript string `json:"transcript"`
}

func (h *HttpApi) analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Transcript == "" {
		h.writeError(r.Context(), w, http.StatusBadRequest, "transcript is required")
		return
	}

	result := h.coach.AnalyzeRecording(r.Context(), userID, req.Transcript)
	if h.db != nil {
		if err := h.db.SaveAnalysis(r.Context(), postgres.SaveAnalysisProps{
			UserID:     userID,
			Transcript: req.Transcript,
			Result:     result,
		}); err != nil {
			h.logger.Logger(r.Context()).Warn("[HttpApi] Could not persist analysis", zap.Error(err))
		}
	}
	h.writeJSON(r.Context(), w, http.StatusOK, result)
}

type profileRequest struct {
	Goal         string `json:"goal"`
	DailyMinutes int    `json:"dailyMinutes"`
}

func (h *HttpApi) saveProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if h.db == nil {
		h.writeError(r.Context(), w, http.StatusServiceUnavailable, "persistence unavailable")
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Goal == "" {
		h.writeError(r.Context(), w, http.StatusBadRequest, "goal is required")
		return
	}

	if err := h.db.SaveProfile(r.Context(), postgres.SaveProfileProps{
		UserID:       userID,
		Goal:         req.Goal,
		DailyMinutes: req.DailyMinutes,
	}); err != nil {
		h.writeError(r.Context(), w, http.StatusInternalServerError, "could not save profile")
		return
	}
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

type progressRequest struct {
	Streak         int                `json:"streak"`
	TotalExercises int                `json:"totalExercises"`
	SkillLevels    []coach.SkillLevel `json:"skillLevels"`
}

func (h *HttpApi) saveProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if h.db == nil {
		h.writeError(r.Context(), w, http.StatusServiceUnavailable, "persistence unavailable")
		return
	}

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid progress payload")
		return
	}

	if err := h.db.SaveProgress(r.Context(), userID, coach.ProgressSummary{
		Streak:         req.Streak,
		TotalExercises: req.TotalExercises,
		SkillLevels:    req.SkillLevels,
	}); err != nil {
		h.writeError(r.Context(), w, http.StatusInternalServerError, "could not save progress")
		return
	}
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

type diagnosticRequest struct {
	OverallLevel int `json:"overallLevel"`
}

func (h *HttpApi) saveDiagnostic(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if h.db == nil {
		h.writeError(r.Context(), w, http.StatusServiceUnavailable, "persistence unavailable")
		return
	}

	var req diagnosticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OverallLevel < 0 || req.OverallLevel > 100 {
		h.writeError(r.Context(), w, http.StatusBadRequest, "overallLevel must be between 0 and 100")
		return
	}

	if err := h.db.SaveDiagnostic(r.Context(), userID, req.OverallLevel); err != nil {
		h.writeError(r.Context(), w, http.StatusInternalServerError, "could not save diagnostic")
		return
	}
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HttpApi) fallbackCount(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]int64{"fallbacks": h.coach.FallbackCount()})
}

func (h *HttpApi) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return userID, true
}

func (h *HttpApi) writeEngineError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coach.ErrBusy):
		h.writeError(ctx, w, http.StatusTooManyRequests, "a request is already in flight for this conversation")
	case errors.Is(err, coach.ErrInvalidState):
		h.writeError(ctx, w, http.StatusConflict, "no simulation awaiting input")
	case errors.Is(err, coach.ErrInvalidScenario):
		h.writeError(ctx, w, http.StatusBadRequest, "scenario has no steps")
	case errors.Is(err, coach.ErrUnknownScenario):
		h.writeError(ctx, w, http.StatusNotFound, "unknown scenario")
	default:
		h.logger.Logger(ctx).Error("[HttpApi] Unexpected engine error", zap.Error(err))
		h.writeError(ctx, w, http.StatusInternalServerError, "internal error")
	}
}

func (h *HttpApi) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}

func (h *HttpApi) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Logger(ctx).Error("[HttpApi] Could not encode response", zap.Error(err))
	}
}

func (h *HttpApi) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		h.logger.Logger(ctx).Info("Request Received", zap.String("url", r.URL.Path), zap.String("method", r.Method))
		next.ServeHTTP(w, r)
		h.logger.Logger(ctx).Info("Request Completed", zap.String("path", r.URL.Path), zap.String("method", r.Method))
	})
}
