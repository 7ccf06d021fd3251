package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"metricsqa/pkg/logging"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID returns the request identifier stored by the middleware, or ""
// outside a request context.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// requestIDMiddleware assigns each request an identifier. An incoming
// X-Request-ID header is honored so callers can correlate their own logs.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Log(logging.Event{
			Level:     logging.LevelInfo,
			Category:  logging.CategoryHTTP,
			EventType: "request",
			RequestID: RequestID(r.Context()),
			Details: map[string]any{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"elapsed_ms": time.Since(start).Milliseconds(),
			},
		})
	})
}

// rateLimitMiddleware applies a process-wide token bucket. Excess requests
// get 429 instead of queueing.
func rateLimitMiddleware(perSecond float64, burst int) func(http.Handler) http.Handler {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
