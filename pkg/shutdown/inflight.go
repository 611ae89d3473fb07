package shutdown

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// InFlightTracker counts running work so shutdown can wait for it. Once
// Shutdown is called no new work is admitted.
type InFlightTracker struct {
	logger   *zap.Logger
	done     chan struct{}
	name     string
	wg       sync.WaitGroup
	mu       sync.Mutex
	draining bool
}

// NewInFlightTracker creates a tracker named for logging
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{name: name, logger: logger, done: make(chan struct{})}
}

// Add admits one unit of work; false once draining started
func (t *InFlightTracker) Add() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draining {
		return false
	}
	t.wg.Add(1)
	return true
}

// Done releases one unit of work
func (t *InFlightTracker) Done() {
	t.wg.Done()
}

// Run executes fn as tracked work; false when it was not started
func (t *InFlightTracker) Run(ctx context.Context, fn func(context.Context)) bool {
	if !t.Add() {
		return false
	}
	defer t.Done()
	fn(ctx)
	return true
}

// Middleware rejects requests with 503 once draining started
func (t *InFlightTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Add() {
			w.Header().Set("Connection", "close")
			http.Error(w, "service shutting down", http.StatusServiceUnavailable)
			return
		}
		defer t.Done()
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops admitting work and waits for running work or ctx
func (t *InFlightTracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if !t.draining {
		t.draining = true
		go func() {
			t.wg.Wait()
			close(t.done)
		}()
	}
	t.mu.Unlock()

	t.logger.Info("Waiting for in-flight work", zap.String("tracker", t.name))
	select {
	case <-t.done:
		t.logger.Info("All in-flight work completed", zap.String("tracker", t.name))
		return nil
	case <-ctx.Done():
		t.logger.Warn("Shutdown timeout, some work may be incomplete", zap.String("tracker", t.name))
		return ctx.Err()
	}
}

// IsShuttingDown reports whether Shutdown was called
func (t *InFlightTracker) IsShuttingDown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draining
}
