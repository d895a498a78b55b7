package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/service/ratelimit"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func fastRetryConfig(maxRetries int) ratelimit.Config {
	cfg := ratelimit.NewConfig(types.ModeAggressive, 100000, 10000000, 8)
	cfg.MaxRetries = maxRetries
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return cfg
}

func TestDoSucceedsAfterThrottling(t *testing.T) {
	l := newLimiter(t, fastRetryConfig(5))

	calls := 0
	trace, attempts, err := l.DoWithTrace(t.Context(), 100, func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return goerr.Wrap(ratelimit.ErrThrottled, "slow down")
		}
		return nil
	})
	gt.NoError(t, err).Required()
	gt.Number(t, attempts).Equal(3)
	gt.Value(t, trace).Equal([]types.RetryState{
		types.RetryStateIdle,
		types.RetryStateWaiting,
		types.RetryStateRetrying,
		types.RetryStateWaiting,
		types.RetryStateRetrying,
		types.RetryStateWaiting,
		types.RetryStateSucceeded,
	})

	snap := l.Snapshot()
	gt.Number(t, snap.Throttles).Equal(int64(2))
	gt.Number(t, snap.Retries).Equal(int64(2))
	gt.Number(t, snap.Ceiling).Less(8)
}

func TestDoFailsFastOnPermanentError(t *testing.T) {
	l := newLimiter(t, fastRetryConfig(5))
	permanent := errors.New("invalid request: schema mismatch")

	trace, attempts, err := l.DoWithTrace(t.Context(), 100, func(ctx context.Context) error {
		return permanent
	})
	gt.Error(t, err).Is(permanent)
	gt.Bool(t, errors.Is(err, ratelimit.ErrRetryExhausted)).False()
	gt.Number(t, attempts).Equal(1)
	gt.Value(t, trace[len(trace)-1]).Equal(types.RetryStateFailed)
}

func TestDoExhaustsRetries(t *testing.T) {
	l := newLimiter(t, fastRetryConfig(2))
	last := errors.New("503 service unavailable")

	calls := 0
	_, attempts, err := l.DoWithTrace(t.Context(), 100, func(ctx context.Context) error {
		calls++
		return last
	})
	gt.Error(t, err).Is(ratelimit.ErrRetryExhausted)
	gt.Error(t, err).Is(last)
	gt.Number(t, attempts).Equal(3)
	gt.Number(t, calls).Equal(3)
	gt.Number(t, l.Snapshot().InFlight).Equal(0)
}

func TestDoStopsOnCancellation(t *testing.T) {
	l := newLimiter(t, fastRetryConfig(5))
	ctx, cancel := context.WithCancel(t.Context())

	calls := 0
	err := l.Do(ctx, 100, func(ctx context.Context) error {
		calls++
		cancel()
		return fmt.Errorf("429 too many requests")
	})
	gt.Error(t, err)
	gt.Number(t, calls).Equal(1)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		throttled bool
		retryable bool
	}{
		{"sentinel throttle", goerr.Wrap(ratelimit.ErrThrottled, "x"), true, true},
		{"http 429", errors.New("status 429: Too Many Requests"), true, true},
		{"gemini quota", errors.New("rpc error: code = ResourceExhausted desc = Quota exceeded"), true, true},
		{"rate limit text", errors.New("Rate limit reached for gpt-4o-mini"), true, true},
		{"transient sentinel", goerr.Wrap(ratelimit.ErrTransient, "x"), false, true},
		{"unavailable", errors.New("503 Service Unavailable"), false, true},
		{"per call deadline", context.DeadlineExceeded, false, true},
		{"cancelled", context.Canceled, false, false},
		{"bad request", errors.New("400 invalid schema"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, ratelimit.IsThrottled(tt.err)).Equal(tt.throttled)
			gt.Value(t, ratelimit.IsRetryable(tt.err)).Equal(tt.retryable)
		})
	}
}
