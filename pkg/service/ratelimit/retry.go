package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// retry drives one call through Idle → Waiting → (Succeeded | Retrying → Waiting … | Failed).
// Every attempt takes a fresh permit from the limiter.
type retry struct {
	limiter    *Limiter
	maxRetries int
	backOff    backoff.BackOff

	state    types.RetryState
	attempts int
	trace    []types.RetryState
}

var retryTransitions = map[types.RetryState][]types.RetryState{
	types.RetryStateIdle:     {types.RetryStateWaiting},
	types.RetryStateWaiting:  {types.RetryStateSucceeded, types.RetryStateRetrying, types.RetryStateFailed},
	types.RetryStateRetrying: {types.RetryStateWaiting, types.RetryStateFailed},
}

func newRetry(l *Limiter) *retry {
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(l.cfg.InitialBackoff),
		backoff.WithMaxInterval(l.cfg.MaxBackoff),
		backoff.WithRandomizationFactor(0.5),
		backoff.WithMultiplier(2),
		backoff.WithMaxElapsedTime(0),
	)
	return &retry{
		limiter:    l,
		maxRetries: l.cfg.MaxRetries,
		backOff:    bo,
		state:      types.RetryStateIdle,
		trace:      []types.RetryState{types.RetryStateIdle},
	}
}

func (r *retry) transition(to types.RetryState) {
	for _, allowed := range retryTransitions[r.state] {
		if allowed == to {
			r.state = to
			r.trace = append(r.trace, to)
			return
		}
	}
	panic(fmt.Sprintf("invalid retry transition %s -> %s", r.state, to))
}

func (r *retry) run(ctx context.Context, estimatedTokens int, fn func(ctx context.Context) error) error {
	logger := logging.From(ctx)

	for {
		r.transition(types.RetryStateWaiting)
		r.attempts++

		permit, err := r.limiter.Acquire(ctx, estimatedTokens)
		if err != nil {
			r.transition(types.RetryStateFailed)
			return err
		}

		callErr := fn(ctx)
		if callErr == nil {
			r.limiter.Release(permit, types.OutcomeSuccess)
			r.transition(types.RetryStateSucceeded)
			return nil
		}

		outcome := types.OutcomeFailure
		if IsThrottled(callErr) {
			outcome = types.OutcomeThrottled
		}
		r.limiter.Release(permit, outcome)

		if ctx.Err() != nil || !IsRetryable(callErr) {
			r.transition(types.RetryStateFailed)
			return callErr
		}

		if r.attempts > r.maxRetries {
			r.transition(types.RetryStateFailed)
			return goerr.Wrap(fmt.Errorf("%w: %w", ErrRetryExhausted, callErr), "giving up on call",
				goerr.V("attempts", r.attempts))
		}

		r.transition(types.RetryStateRetrying)
		r.limiter.NoteRetry()

		delay := r.backOff.NextBackOff()
		if delay == backoff.Stop {
			r.transition(types.RetryStateFailed)
			return goerr.Wrap(fmt.Errorf("%w: %w", ErrRetryExhausted, callErr), "backoff stopped",
				goerr.V("attempts", r.attempts))
		}

		logger.Warn("retrying call",
			"attempt", r.attempts,
			"delay", delay.String(),
			"outcome", outcome.String(),
			"error", callErr.Error(),
		)

		if err := sleep(ctx, delay); err != nil {
			r.transition(types.RetryStateFailed)
			return goerr.Wrap(err, "retry wait cancelled", goerr.V("attempts", r.attempts))
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn under the limiter, retrying throttled and transient failures with
// exponential backoff and jitter up to MaxRetries times. When all attempts fail
// the returned error matches ErrRetryExhausted and the last call error.
func (l *Limiter) Do(ctx context.Context, estimatedTokens int, fn func(ctx context.Context) error) error {
	return newRetry(l).run(ctx, estimatedTokens, fn)
}
