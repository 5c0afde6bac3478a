package main

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"primefinder/internal/logging"
	appmetrics "primefinder/internal/metrics"

	"github.com/google/uuid"
	metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	middlewarestd "github.com/slok/go-http-metrics/middleware/std"
)

const requestIDHeader = "X-Request-Id"

type requestID struct {
	http.Handler
}

// ServeHTTP reuses an incoming X-Request-Id or mints one.
func (h *requestID) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(requestIDHeader)
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, id)
	h.Handler.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

type logger struct {
	http.Handler
}

func (l *logger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w}
	l.Handler.ServeHTTP(sw, r)
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	switch r.URL.Path {
	case "/ready", "/healthz", "/metrics":
		return
	}
	slog.InfoContext(r.Context(), "request", "method", r.Method, "url", r.URL.Path, "query", r.URL.Query(), "status", sw.status, "duration", time.Since(start))
}

type recoverer struct {
	http.Handler
}

func (r *recoverer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			slog.ErrorContext(req.Context(), "panic recovered", "error", err, "stack", string(debug.Stack()))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}()
	r.Handler.ServeHTTP(w, req)
}

// routeMetrics labels HTTP metrics with the mux pattern that will serve the
// request, so /go/{asin} is one series rather than one per ASIN.
type routeMetrics struct {
	mux  *http.ServeMux
	mdlw middleware.Middleware
}

func (m *routeMetrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, pattern := m.mux.Handler(r)
	if pattern == "" {
		pattern = "unmatched"
	}
	middlewarestd.Handler(pattern, m.mdlw, m.mux).ServeHTTP(w, r)
}

// WithMiddleware adds request ids, access logs, panic recovery and HTTP
// metrics registered on reg.
func WithMiddleware(mux *http.ServeMux, reg *appmetrics.Registry) http.Handler {
	mdlw := middleware.New(middleware.Config{
		Recorder: metrics.NewRecorder(metrics.Config{Registry: reg.Registerer()}),
	})
	return &requestID{
		&logger{
			&recoverer{
				&routeMetrics{mux: mux, mdlw: mdlw},
			},
		},
	}
}
