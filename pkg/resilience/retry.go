package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy configures exponential backoff with jitter
type RetryPolicy struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxRetries          uint64
}

// DefaultRetryPolicy returns the policy used for gateway intent creation.
//
// Retry sequence (±10% jitter): ~200ms, ~400ms, ~800ms, then give up.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:     200 * time.Millisecond,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      20 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.1,
		MaxRetries:          3,
	}
}

// NoRetryPolicy runs the operation exactly once
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 0, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.RandomizationFactor
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// Retry runs op until it succeeds, returns an error retryable rejects, the
// policy is exhausted or ctx is done. The last error is returned unwrapped.
// notify, when set, is called before each wait.
func Retry(ctx context.Context, p RetryPolicy, retryable func(error) bool, op func(context.Context) error, notify func(err error, wait time.Duration)) error {
	return backoff.RetryNotify(func() error {
		err := op(ctx)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), notify)
}
