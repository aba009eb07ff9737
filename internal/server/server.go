// Package server exposes the analyst over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"financeagent/internal/analyst"
	"financeagent/internal/config"
	"financeagent/internal/evidence"
	"financeagent/internal/logger"
)

// DefaultRequestTimeout bounds one API request, summary included
const DefaultRequestTimeout = 90 * time.Second

// Analyst is the part of analyst.Service the API needs
type Analyst interface {
	Evidence(ctx context.Context, prompt string, opts config.Request) (evidence.Bundle, error)
	Ask(ctx context.Context, prompt string, opts config.Request) (*analyst.Answer, error)
	Compare(ctx context.Context, tickerA, tickerB, focus string, opts config.Request) (*analyst.Answer, error)
}

// Options configures the router
type Options struct {
	Defaults       config.Request
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type server struct {
	analyst  Analyst
	defaults config.Request
	log      *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type promptRequest struct {
	Prompt  string            `json:"prompt"`
	Options *config.Overrides `json:"options"`
}

type compareRequest struct {
	TickerA string            `json:"ticker_a"`
	TickerB string            `json:"ticker_b"`
	Focus   string            `json:"focus"`
	Options *config.Overrides `json:"options"`
}

// New builds the HTTP handler
func New(a Analyst, opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	s := &server{analyst: a, defaults: opts.Defaults, log: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		r.Post("/evidence", s.handleEvidence)
		r.Post("/ask", s.handleAsk)
		r.Post("/compare", s.handleCompare)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleEvidence(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "prompt is required"})
		return
	}

	bundle, err := s.analyst.Evidence(r.Context(), req.Prompt, req.Options.Apply(s.defaults))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "prompt is required"})
		return
	}

	ans, err := s.analyst.Ask(r.Context(), req.Prompt, req.Options.Apply(s.defaults))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !s.decode(w, r, &req) {
		return
	}

	ans, err := s.analyst.Compare(r.Context(), req.TickerA, req.TickerB, req.Focus, req.Options.Apply(s.defaults))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *config.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, analyst.ErrInvalidTickers):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	default:
		s.log.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
