package backoff

import (
	"context"
	"time"

	bf "github.com/cenkalti/backoff/v5"
)

// Policy is a reusable retry policy shared by external call sites (embedding,
// store, agent, web search). Zero values are replaced by Default settings.
type Policy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
}

// Default returns the standard policy: 3 attempts, exponential backoff
// starting at 1 second with jitter.
func Default() *Policy {
	return &Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.3,
	}
}

// Do runs op with exponential backoff until it succeeds, returns a permanent
// error, the attempt budget is exhausted, or ctx is done. The last underlying
// error is returned on failure.
func Do[T any](ctx context.Context, p *Policy, op func() (T, error)) (T, error) {
	if p == nil {
		p = Default()
	}

	eb := bf.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		eb.Multiplier = p.Multiplier
	}
	eb.RandomizationFactor = p.Jitter

	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = Default().MaxAttempts
	}

	return bf.Retry(ctx, bf.Operation[T](op),
		bf.WithBackOff(eb),
		bf.WithMaxTries(attempts),
	)
}

// Permanent marks err as non-retryable so Do stops immediately.
func Permanent(err error) error {
	return bf.Permanent(err)
}
