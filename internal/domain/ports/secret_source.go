package ports

import "context"

// SecretSource resolves named secrets at startup
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}
