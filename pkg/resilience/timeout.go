package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines timeout values for each layer. Each layer must finish
// before its parent times out:
//
//	HTTP handler (60s) > service (50s) > gateway call (30s) > database (5s)
type TimeoutConfig struct {
	HTTPHandler time.Duration
	Service     time.Duration
	ExternalAPI time.Duration
	Database    time.Duration
	CronJob     time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 60 * time.Second,
		Service:     50 * time.Second,
		ExternalAPI: 30 * time.Second,
		Database:    5 * time.Second,
		CronJob:     5 * time.Minute,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 5 * time.Second,
		Service:     4 * time.Second,
		ExternalAPI: 2 * time.Second,
		Database:    1 * time.Second,
		CronJob:     30 * time.Second,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// ServiceContext creates a context with timeout for service layer operations
func (tc *TimeoutConfig) ServiceContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Service)
}

// ExternalAPIContext creates a context for a single gateway call
func (tc *TimeoutConfig) ExternalAPIContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.ExternalAPI)
}

// DatabaseContext creates a context for store operations
func (tc *TimeoutConfig) DatabaseContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Database)
}

// CronContext creates a context with timeout for scheduled jobs
func (tc *TimeoutConfig) CronContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.CronJob)
}
