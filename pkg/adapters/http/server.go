package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/flowrun"
	"github.com/aretw0/flowrun/internal/logging"
	"github.com/aretw0/flowrun/internal/presentation/graph"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/aretw0/flowrun/pkg/session"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sessions is the session surface the server drives. session.Manager satisfies it.
type Sessions interface {
	ports.SessionService
	Watch(ctx context.Context, sessionID string) (<-chan *domain.Session, error)
}

var _ Sessions = (*session.Manager)(nil)

// Server exposes flows and sessions over HTTP.
type Server struct {
	sessions Sessions
	flows    ports.FlowLoader
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	validate *validator.Validate
	spec     *openapi3.T
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets the registry served on /metrics. Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

type startRequest struct {
	FlowID    string `json:"flow_id" validate:"required,max=256"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=256"`
}

type inputRequest struct {
	Text *string `json:"text" validate:"required"`
}

type inputResponse struct {
	Accepted bool            `json:"accepted"`
	Session  *domain.Session `json:"session"`
}

// NewHandler builds the chi router for sessions and flows.
func NewHandler(sessions Sessions, flows ports.FlowLoader, opts ...Option) (http.Handler, error) {
	spec, err := Spec()
	if err != nil {
		return nil, err
	}

	s := &Server{
		sessions: sessions,
		flows:    flows,
		logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		spec:     spec,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/flows", func(r chi.Router) {
		r.Get("/", s.listFlows)
		r.Get("/{flowID}", s.getFlow)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.startSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/input", s.submitInput)
			r.Post("/reset", s.resetSession)
			r.Get("/events", s.subscribeEvents)
		})
	})
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, _ *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "flowrun-http",
		"version":     strings.TrimSpace(flowrun.Version),
		"api_version": apiVersion,
	})
}

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	ids, err := s.flows.ListFlows(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	var format string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flow, err := s.flows.LoadFlow(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch format {
	case "", "json":
		writeJSON(w, http.StatusOK, flow)
	case "mermaid":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(graph.GenerateMermaid(flow, nil)))
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported format %q", format))
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if !s.decode(w, r, &body) {
		return
	}

	snap, err := s.sessions.Start(r.Context(), body.SessionID, body.FlowID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("session started", logging.SessionID(snap.ID), logging.FlowID(snap.FlowID))
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) submitInput(w http.ResponseWriter, r *http.Request) {
	var body inputRequest
	if !s.decode(w, r, &body) {
		return
	}

	snap, accepted, err := s.sessions.SubmitInput(r.Context(), chi.URLParam(r, "sessionID"), *body.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inputResponse{Accepted: accepted, Session: snap})
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Reset(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// decode reads and validates a JSON body, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logging.Err(err))
	}
	writeError(w, code, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrFlowNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInputTooLarge), errors.Is(err, session.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMalformedFlow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSessionReset):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
