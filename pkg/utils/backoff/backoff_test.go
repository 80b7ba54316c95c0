package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/engramlabs/engram/pkg/utils/backoff"
)

func fastPolicy(attempts uint) *backoff.Policy {
	return &backoff.Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestDoRetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	calls := 0

	v, err := backoff.Do(ctx, fastPolicy(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	gt.NoError(t, err)
	gt.Equal(t, v, "ok")
	gt.Equal(t, calls, 3)
}

func TestDoExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	calls := 0
	last := errors.New("still failing")

	_, err := backoff.Do(ctx, fastPolicy(3), func() (int, error) {
		calls++
		return 0, last
	})
	gt.Error(t, err)
	gt.Equal(t, calls, 3)
	gt.Equal(t, errors.Is(err, last), true)
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	ctx := context.Background()
	calls := 0
	fatal := errors.New("bad request")

	_, err := backoff.Do(ctx, fastPolicy(5), func() (int, error) {
		calls++
		return 0, backoff.Permanent(fatal)
	})
	gt.Error(t, err)
	gt.Equal(t, calls, 1)
	gt.Equal(t, errors.Is(err, fatal), true)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backoff.Do(ctx, fastPolicy(5), func() (int, error) {
		return 0, errors.New("transient")
	})
	gt.Error(t, err)
}
