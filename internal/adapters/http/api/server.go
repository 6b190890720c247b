// Package api exposes a trainee session over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/drillcore/internal/adapters/health"
	"github.com/okian/drillcore/internal/adapters/http/swagger"
	service "github.com/okian/drillcore/internal/app"
	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/internal/domain/rotation"
	"github.com/okian/drillcore/internal/domain/run"
	"github.com/okian/drillcore/pkg/logger"
)

// Dependencies required by HTTP handlers. *service.Session satisfies it.
type Dependencies interface {
	StartRun(ctx context.Context, gameID string, questions []model.Question, difficulty int, mode model.Mode) (run.StartResult, error)
	SubmitAnswer(ctx context.Context, answerID string) *run.AnswerResult
	NextQuestion(ctx context.Context) (*run.RunSummary, bool)
	AbortRun(ctx context.Context) bool
	ForceProceedOffline(ctx context.Context) bool
	RestartRun(ctx context.Context) (run.StartResult, error)
	RunState() run.Snapshot

	Rotation(ctx context.Context) (*rotation.Selection, error)
	Rotate(ctx context.Context) (*rotation.Selection, error)
	UpdateUserContext(ctx context.Context, mastery map[string]float64, leaks []string) []rotation.Item

	ActiveLeaks() []model.LeakCategory
	ResetLeaks(ctx context.Context)

	HealthCheck(ctx context.Context) bool
	MarkOffline(ctx context.Context, reason string)
	Signal(sig health.Signal) bool
	History(limit int) []model.Event
	Pending(ctx context.Context) []model.Event
	GetStats(ctx context.Context) service.Stats
}

// Server wires HTTP routes for the session API.
type Server struct {
	deps      Dependencies
	log       logger.Logger
	maxEvents int
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{deps: deps, maxEvents: defaultMaxEvents}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log).Named("http")
	return s
}

// Routes builds the router. Every route is instrumented with its pattern as
// the endpoint label.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)

	r.Get("/healthz", HandleHealth)
	swagger.Register(r)
	r.Get("/stats", s.handleStats)
	r.Get("/events", s.handleEvents)
	r.Get("/events/pending", s.handlePending)

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.handleStartRun)
		r.Get("/state", s.handleRunState)
		r.Post("/answer", s.handleAnswer)
		r.Post("/next", s.handleNext)
		r.Post("/abort", s.handleAbort)
		r.Post("/proceed-offline", s.handleProceedOffline)
		r.Post("/restart", s.handleRestart)
	})

	r.Route("/rotation", func(r chi.Router) {
		r.Get("/", s.handleGetRotation)
		r.Post("/", s.handleRotate)
		r.Put("/context", s.handleUserContext)
	})

	r.Get("/leaks", s.handleGetLeaks)
	r.Delete("/leaks", s.handleResetLeaks)

	r.Route("/pipeline", func(r chi.Router) {
		r.Post("/health", s.handleHealthCheck)
		r.Post("/offline", s.handleMarkOffline)
		r.Post("/signal", s.handleSignal)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, run.ErrInvalidQuestionCount),
		errors.Is(err, run.ErrInvalidQuestion),
		errors.Is(err, model.ErrInvalidQuestion),
		errors.Is(err, model.ErrUnknownMode),
		errors.Is(err, health.ErrUnknownSignal):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, run.ErrRunInProgress),
		errors.Is(err, run.ErrNoRunToRestart),
		errors.Is(err, ErrInvalidState):
		return http.StatusConflict, "conflict"
	case errors.Is(err, rotation.ErrNoSelection):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	fields := []logger.Field{
		logger.String("path", r.URL.Path),
		logger.String("class", errorClass(status)),
		logger.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", fields...)
	} else {
		s.log.Debug(r.Context(), "request rejected", fields...)
	}
	writeError(w, status, code, err)
}
