package ratelimit

import (
	"context"

	"github.com/db4dd/db4dd/pkg/domain/types"
)

// DoWithTrace runs fn like Do and also returns the visited retry states
func (l *Limiter) DoWithTrace(ctx context.Context, est int, fn func(ctx context.Context) error) ([]types.RetryState, int, error) {
	r := newRetry(l)
	err := r.run(ctx, est, fn)
	return r.trace, r.attempts, err
}
