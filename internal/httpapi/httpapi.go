// Package httpapi exposes the planning service over HTTP. Authentication
// and TLS termination are left to the reverse proxy in front of it.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"metaplan/internal/chat"
	"metaplan/internal/engine"
	"metaplan/internal/llm"
	"metaplan/internal/override"
	"metaplan/internal/store"
)

// Server wires the planning components behind HTTP handlers.
type Server struct {
	Engine   *engine.Orchestrator
	Store    *store.Store
	Governor *override.Governor
	Bridge   *chat.Bridge
	Logger   *zap.Logger
	UserID   string

	startedAt time.Time
}

// NewServer returns a server for a single-user deployment.
func NewServer(eng *engine.Orchestrator, s *store.Store, gov *override.Governor, bridge *chat.Bridge, logger *zap.Logger, userID string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Engine:    eng,
		Store:     s,
		Governor:  gov,
		Bridge:    bridge,
		Logger:    logger,
		UserID:    userID,
		startedAt: time.Now(),
	}
}

// Router builds the HTTP route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/plans/generate", s.handleGeneratePlan)
		r.Get("/plans/{date}", s.handleGetPlan)
		r.Get("/overrides/status", s.handleOverrideStatus)
		r.Post("/overrides", s.handleRecordOverride)
		r.Post("/chat", s.handleChat)
		r.Get("/system/status", s.handleSystemStatus)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

type generateRequest struct {
	Date string `json:"date"`
	Wait bool   `json:"wait"`
}

type generateResponse struct {
	PlanID     string `json:"plan_id"`
	Date       string `json:"date"`
	RoundTrips int    `json:"round_trips"`
	Replaced   bool   `json:"replaced"`
	Diff       string `json:"diff,omitempty"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be JSON")
		return
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD")
		return
	}

	res, err := s.Engine.Generate(r.Context(), engine.Request{UserID: s.UserID, Date: req.Date, Wait: req.Wait})
	if err != nil {
		s.writeGenerateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		PlanID:     res.Record.ID,
		Date:       res.Record.PlanDate,
		RoundTrips: res.RoundTrips,
		Replaced:   res.Replaced,
		Diff:       res.Diff,
	})
}

func (s *Server) writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrGenerationInProgress):
		writeError(w, http.StatusConflict, chat.CodeGenerationInProgress,
			"a generation for this date is already running")
	case errors.Is(err, llm.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, chat.CodeLLMNotConfigured,
			"no language model is configured")
	case errors.Is(err, engine.ErrTimedOut):
		writeError(w, http.StatusGatewayTimeout, "generation_timeout",
			"plan generation timed out")
	default:
		var ge *engine.GenerationError
		if errors.As(err, &ge) {
			s.Logger.Warn("generation failed", zap.String("reason", ge.Reason), zap.Error(err))
			writeError(w, http.StatusBadGateway, chat.CodePlanGenerationFailed,
				"the model did not produce a valid plan")
			return
		}
		s.Logger.Error("generate failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, chat.CodeInternalError, "internal error")
	}
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD")
		return
	}

	rec, err := s.Store.GetPlan(r.Context(), s.UserID, date)
	if err != nil {
		s.Logger.Error("get plan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, chat.CodeInternalError, "internal error")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "plan_not_found", "no plan exists for "+date)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plan_id":      rec.ID,
		"date":         rec.PlanDate,
		"plan":         rec.Plan,
		"generated_at": rec.GeneratedAt,
		"modified_at":  rec.ModifiedAt,
	})
}

func (s *Server) handleOverrideStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Governor.StatusFor(r.Context(), s.UserID)
	if err != nil {
		s.Logger.Error("override status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, chat.CodeInternalError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type overrideRequest struct {
	PlanID string `json:"plan_id"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (s *Server) handleRecordOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be JSON")
		return
	}
	if req.PlanID == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "plan_id and type are required")
		return
	}

	st, err := s.Governor.Record(r.Context(), s.UserID, req.PlanID, req.Type, req.Reason)
	if err != nil {
		var lee *override.LimitExceededError
		if errors.As(err, &lee) {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"error":  "weekly override limit reached",
				"code":   "override_limit_reached",
				"status": lee.Status,
			})
			return
		}
		s.Logger.Error("record override failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, chat.CodeInternalError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, st)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be JSON")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "message is required")
		return
	}

	reply := s.Bridge.Respond(r.Context(), s.UserID, req.Message)
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	planCount, err := s.Store.PlanCount(r.Context(), s.UserID)
	if err != nil {
		s.Logger.Error("system status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, chat.CodeInternalError, "internal error")
		return
	}
	overrides, err := s.Governor.StatusFor(r.Context(), s.UserID)
	if err != nil {
		s.Logger.Error("system status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, chat.CodeInternalError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"plans":     planCount,
		"overrides": overrides,
	})
}
