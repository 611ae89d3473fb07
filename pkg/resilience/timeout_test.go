package resilience

import (
	"context"
	"testing"
	"time"
)

func assertHierarchy(t *testing.T, config *TimeoutConfig) {
	t.Helper()
	if config.HTTPHandler <= config.Service {
		t.Errorf("HTTPHandler (%v) must be > Service (%v)", config.HTTPHandler, config.Service)
	}
	if config.Service <= config.ExternalAPI {
		t.Errorf("Service (%v) must be > ExternalAPI (%v)", config.Service, config.ExternalAPI)
	}
	if config.ExternalAPI <= config.Database {
		t.Errorf("ExternalAPI (%v) must be > Database (%v)", config.ExternalAPI, config.Database)
	}
}

func TestDefaultTimeoutConfig(t *testing.T) {
	config := DefaultTimeoutConfig()
	assertHierarchy(t, config)

	if config.ExternalAPI != 30*time.Second {
		t.Errorf("Expected ExternalAPI = 30s, got %v", config.ExternalAPI)
	}
}

func TestTestTimeoutConfig(t *testing.T) {
	config := TestTimeoutConfig()
	assertHierarchy(t, config)

	if config.HTTPHandler >= 10*time.Second {
		t.Errorf("Test timeouts should be < 10s, got %v", config.HTTPHandler)
	}
}

func TestExternalAPIContext_HasDeadline(t *testing.T) {
	config := TestTimeoutConfig()

	ctx, cancel := config.ExternalAPIContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if remaining := time.Until(deadline); remaining > config.ExternalAPI || remaining <= 0 {
		t.Errorf("unexpected remaining time %v", remaining)
	}
}
