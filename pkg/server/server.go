// Package server exposes the question-answering engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"metricsqa/pkg/logging"
	"metricsqa/pkg/model"
)

var httpRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "metricsqa_http_requests_total",
		Help: "HTTP requests by route and status code.",
	},
	[]string{"route", "status"},
)

var askDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "metricsqa_ask_duration_seconds",
		Help:    "End to end latency of /api/v1/llm/ask.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
	},
)

// Asker answers one natural-language question.
type Asker interface {
	Ask(ctx context.Context, requestID, question string) (string, error)
}

// Server holds the HTTP surface of the service.
type Server struct {
	asker  Asker
	logger *logging.Logger
	router chi.Router
}

// Options tunes middleware behavior.
type Options struct {
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New builds the router with its middleware stack.
func New(asker Asker, logger *logging.Logger, opts Options) *Server {
	s := &Server{asker: asker, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	if opts.RateLimitPerSecond > 0 {
		r.Use(rateLimitMiddleware(opts.RateLimitPerSecond, opts.RateLimitBurst))
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/llm/ask", s.handleAsk)

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

type askRequest struct {
	Text string `json:"text"`

	// Question is an accepted alias for Text.
	Question string `json:"question"`
}

func (r askRequest) question() string {
	if q := strings.TrimSpace(r.Text); q != "" {
		return q
	}
	return strings.TrimSpace(r.Question)
}

type askResponse struct {
	Answer    string `json:"answer"`
	RequestID string `json:"request_id"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	httpRequests.WithLabelValues("/healthz", "200").Inc()
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())
	start := time.Now()

	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, requestID, http.StatusBadRequest, "request body must be JSON with a text field")
		return
	}
	question := req.question()
	if question == "" {
		s.writeError(w, requestID, http.StatusBadRequest, "text must not be empty")
		return
	}

	answer, err := s.asker.Ask(r.Context(), requestID, question)
	askDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"
		var apiErr *model.APIError
		if errors.As(err, &apiErr) || strings.Contains(err.Error(), "model call failed") {
			status = http.StatusBadGateway
			message = "model backend unavailable"
		}
		s.logger.Log(logging.Event{
			Level:     logging.LevelError,
			Category:  logging.CategoryHTTP,
			EventType: "ask_failed",
			RequestID: requestID,
			Details:   map[string]any{"error": err.Error()},
			Message:   "ask request failed",
		})
		s.writeError(w, requestID, status, message)
		return
	}

	httpRequests.WithLabelValues("/api/v1/llm/ask", "200").Inc()
	writeJSON(w, http.StatusOK, askResponse{Answer: answer, RequestID: requestID})
}

func (s *Server) writeError(w http.ResponseWriter, requestID string, status int, message string) {
	httpRequests.WithLabelValues("/api/v1/llm/ask", strconv.Itoa(status)).Inc()
	writeJSON(w, status, errorResponse{Error: message, RequestID: requestID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
