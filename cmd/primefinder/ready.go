package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
)

type Readyable interface {
	Ready(context.Context) error
}

type namedCheck struct {
	name  string
	check Readyable
}

// readyOnce runs its checks until they all pass once, then always reports ready.
type readyOnce struct {
	mu     sync.Mutex
	done   atomic.Bool
	checks []namedCheck
}

func (r *readyOnce) Add(name string, check Readyable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

func (r *readyOnce) Ready(ctx context.Context) error {
	if r.done.Load() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.checks {
		if err := c.check.Ready(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	r.done.Store(true)
	return nil
}

func (r *readyOnce) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if err := r.Ready(req.Context()); err != nil {
		slog.WarnContext(req.Context(), "not ready", "error", err)
		http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.ErrorContext(req.Context(), "failed to write readiness response", "error", err)
	}
}
