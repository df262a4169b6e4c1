package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"yasp/internal/catalog"
	"yasp/internal/config"
	"yasp/internal/metrics"
	"yasp/internal/ratelimit"
	"yasp/internal/spec"
	"yasp/internal/store"
)

type server struct {
	cfg     *config.Config
	fetcher *spec.Fetcher
	catalog *catalog.Service
	store   *store.Store
	limiter *ratelimit.Keyed
	metrics *metrics.Collector
	logger  *slog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/fetch-spec", s.handleFetchSpec)
	mux.HandleFunc("POST /api/reconcile", s.handleReconcile)
	mux.HandleFunc("POST /api/infer-servers", s.handleInferServers)
	mux.HandleFunc("POST /api/specs", s.handleCreateSpec)
	mux.HandleFunc("GET /api/specs", s.handleListSpecs)
	mux.HandleFunc("GET /api/specs/{id}", s.handleGetSpec)
	mux.HandleFunc("PUT /api/specs/{id}", s.handleUpdateSpec)
	mux.HandleFunc("DELETE /api/specs/{id}", s.handleDeleteSpec)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return recoverMiddleware(s.instrument(mux))
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records metrics and a request log line. Only the method, the
// matched route and the status are logged: request bodies carry URLs and
// spec content.
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("X-Content-Type-Options", "nosniff")
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)
		s.metrics.RecordHTTP(route, rec.status, duration)
		s.logger.Debug("http request", "method", r.Method, "route", route, "status", rec.status, "duration", duration)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered in HTTP handler", "error", err, "method", r.Method)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// sweepLimiter drops idle per-client limiters until ctx is done.
func (s *server) sweepLimiter(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Sweep(time.Hour); n > 0 {
				s.logger.Debug("rate limiter sweep", "removed", n, "tracked", s.limiter.Len())
			}
		}
	}
}

// clientIP is the peer address. Forwarding headers are not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
