package llm

import (
	"context"
	"sync/atomic"
)

// Usage accumulates the calls made on behalf of one context, e.g. one document
type Usage struct {
	calls     atomic.Int64
	cacheHits atomic.Int64
}

type usageKey struct{}

// discard absorbs counts for contexts without a Usage
var discard = &Usage{}

// WithUsage returns a context whose gateway calls are counted into u
func WithUsage(ctx context.Context, u *Usage) context.Context {
	return context.WithValue(ctx, usageKey{}, u)
}

func usageFrom(ctx context.Context) *Usage {
	if u, ok := ctx.Value(usageKey{}).(*Usage); ok && u != nil {
		return u
	}
	return discard
}

// Calls is the number of provider calls, including retries
func (u *Usage) Calls() int64 {
	return u.calls.Load()
}

// CacheHits is the number of requests answered from the cache
func (u *Usage) CacheHits() int64 {
	return u.cacheHits.Load()
}
