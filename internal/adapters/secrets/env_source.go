package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

// ErrSecretNotFound is returned when a source has no value for a name
var ErrSecretNotFound = fmt.Errorf("secret not found")

// EnvSource reads secrets from environment variables. A name such as
// "gateway/secret-key" maps to GATEWAY_SECRET_KEY.
type EnvSource struct {
	lookup func(string) (string, bool)
}

var _ ports.SecretSource = (*EnvSource)(nil)

// NewEnvSource creates a source backed by the process environment
func NewEnvSource() *EnvSource {
	return &EnvSource{lookup: os.LookupEnv}
}

func (s *EnvSource) GetSecret(_ context.Context, name string) (string, error) {
	key := EnvKey(name)
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s (env %s)", ErrSecretNotFound, name, key)
	}
	return v, nil
}

// EnvKey converts a secret name to its environment variable name
func EnvKey(name string) string {
	r := strings.NewReplacer("/", "_", "-", "_", ".", "_")
	return strings.ToUpper(r.Replace(name))
}
