package ui

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"steward/adapters/ensemble"
	"steward/domain/core"
	"steward/domain/grievance"
	"steward/domain/prediction"
	"steward/internal/predict"
)

const maxBodyBytes = 1 << 20

// Server exposes the prediction engine over a JSON API.
type Server struct {
	router *chi.Mux
	engine *predict.Engine
	log    zerolog.Logger
}

// NewServer builds the router around an engine.
func NewServer(engine *predict.Engine, log zerolog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		engine: engine,
		log:    log,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler for mounting or serving.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(s.requestLogger)
}

func (s *Server) setupRoutes() {
	s.router.Post("/api/analyze", s.handleAnalyze)
	s.router.Post("/api/feedback", s.handleFeedback)
	s.router.Post("/api/outcome", s.handleOutcome)
	s.router.Get("/api/errors/report", s.handleErrorReport)
	s.router.Get("/api/stats", s.handleStats)
	s.router.Get("/api/health", s.handleHealth)
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// analyzeRequest is the POST /api/analyze payload. Enhancement toggles
// default to on when the field is omitted.
type analyzeRequest struct {
	Text                string `json:"text"`
	CaseType            string `json:"case_type,omitempty"`
	UseCalibration      *bool  `json:"use_calibration,omitempty"`
	UseEnsemble         *bool  `json:"use_ensemble,omitempty"`
	UseFeedbackLearning *bool  `json:"use_feedback_learning,omitempty"`
	EnsembleStrategy    string `json:"ensemble_strategy,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	opts := predict.DefaultOptions()
	if req.UseCalibration != nil {
		opts.UseCalibration = *req.UseCalibration
	}
	if req.UseEnsemble != nil {
		opts.UseEnsemble = *req.UseEnsemble
	}
	if req.UseFeedbackLearning != nil {
		opts.UseFeedbackLearning = *req.UseFeedbackLearning
	}
	if req.EnsembleStrategy != "" {
		opts.EnsembleStrategy = ensemble.Strategy(req.EnsembleStrategy)
	}

	analysis, err := s.engine.Analyze(r.Context(), req.Text, grievance.CaseType(req.CaseType), opts)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

// feedbackRequest is the POST /api/feedback payload.
type feedbackRequest struct {
	GrievanceID string                `json:"grievance_id"`
	Original    prediction.Prediction `json:"original"`
	Corrected   prediction.Prediction `json:"corrected"`
	Type        string                `json:"feedback_type,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !s.decode(w, r, &req) {
		return
	}

	entry, err := s.engine.RecordFeedback(
		core.GrievanceID(req.GrievanceID),
		req.Original, req.Corrected,
		prediction.FeedbackType(req.Type),
	)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

// outcomeRequest is the POST /api/outcome payload.
type outcomeRequest struct {
	GrievanceID    string `json:"grievance_id"`
	ActualOutcome  string `json:"actual_outcome"`
	ResolutionDate string `json:"resolution_date,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if !s.decode(w, r, &req) {
		return
	}

	record, err := s.engine.TrackActualOutcome(
		core.GrievanceID(req.GrievanceID),
		grievance.Outcome(req.ActualOutcome),
		req.ResolutionDate, req.Notes,
	)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleErrorReport(w http.ResponseWriter, r *http.Request) {
	windowDays := 30
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "window_days must be a positive integer")
			return
		}
		windowDays = parsed
	}
	s.writeJSON(w, http.StatusOK, s.engine.ErrorReport(windowDays))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeEngineError maps domain errors onto HTTP statuses. Validation
// failures are the caller's fault; everything else is ours.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidFeedback),
		errors.Is(err, core.ErrUnknownStrategy),
		errors.Is(err, core.ErrInsufficientData):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}
