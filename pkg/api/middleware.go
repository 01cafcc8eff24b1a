package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs each request and records its status and latency
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		s.metrics.RecordHTTPRequest(routeLabel(r.URL.Path), rec.status, duration)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", duration.Milliseconds())
	})
}

// recoverPanics turns a handler panic into a 500
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					"error", fmt.Errorf("panic: %v", err),
					"method", r.Method,
					"path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// routeLabel keeps metric cardinality bounded by collapsing ids
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/api/runs/") && len(path) > len("/api/runs/") {
		return "/api/runs/{id}"
	}
	switch path {
	case "/health", "/metrics", "/status", "/evaluate", "/run",
		"/api/annotateSequence", "/api/annotateText", "/api/findSimilarParts",
		"/api/importLibrary", "/api/deleteLibrary", "/api/libraries",
		"/api/cleanSBOL", "/api/convert", "/api/runs":
		return path
	}
	return "other"
}
