package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// latencyAlpha is the EWMA weight of the newest latency sample
const latencyAlpha = 0.2

// Limiter is the process-wide admission gate for outbound LLM calls.
// It bounds concurrency with an adaptive ceiling and keeps request and token
// counts of the current window under the configured budget.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu          sync.Mutex
	changed     chan struct{}
	windowStart time.Time
	requests    int
	tokens      int
	inFlight    int
	ceiling     int
	streak      int
	avgLatency  time.Duration

	successes int64
	failures  int64
	throttles int64
	retries   int64
	waits     int64
}

// Permit is returned by Acquire and must be handed back to Release exactly once
type Permit struct {
	tokens   int
	acquired time.Time
	released bool
}

// Snapshot is a read-only view of the limiter state
type Snapshot struct {
	Mode                 types.Mode    `json:"mode"`
	RequestsInWindow     int           `json:"requests_in_window"`
	TokensInWindow       int           `json:"tokens_in_window"`
	WindowStart          time.Time     `json:"window_start"`
	InFlight             int           `json:"in_flight"`
	Ceiling              int           `json:"ceiling"`
	Cap                  int           `json:"cap"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	AvgLatency           time.Duration `json:"avg_latency_ns"`
	Successes            int64         `json:"successes"`
	Failures             int64         `json:"failures"`
	Throttles            int64         `json:"throttles"`
	Retries              int64         `json:"retries"`
	Waits                int64         `json:"waits"`
}

type Option func(*Limiter)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter. The ceiling starts at the configured maximum concurrency.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	cfg = cfg.withDefaults()
	if cfg.Mode == "" {
		cfg.Mode = types.ModeConservative
	}
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid rate limiter config")
	}

	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		changed: make(chan struct{}),
		ceiling: cfg.MaxConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.windowStart = l.now()

	return l, nil
}

// Config returns the effective configuration
func (l *Limiter) Config() Config {
	return l.cfg
}

// Acquire blocks until a concurrency slot and window budget are available for a call
// estimated at estimatedTokens, or ctx is done.
func (l *Limiter) Acquire(ctx context.Context, estimatedTokens int) (*Permit, error) {
	if estimatedTokens < 0 {
		estimatedTokens = 0
	}

	waited := false
	for {
		l.mu.Lock()
		now := l.now()
		l.rollWindow(now)

		if l.admit(estimatedTokens) {
			l.requests++
			l.tokens += estimatedTokens
			l.inFlight++
			if waited {
				l.waits++
			}
			l.mu.Unlock()
			return &Permit{tokens: estimatedTokens, acquired: now}, nil
		}

		changed := l.changed
		untilRoll := l.windowStart.Add(l.cfg.Window).Sub(now)
		budgetBound := l.inFlight < l.ceiling
		l.mu.Unlock()

		if !waited {
			logging.From(ctx).Debug("waiting for rate budget",
				"estimated_tokens", estimatedTokens,
				"budget_bound", budgetBound,
			)
		}
		waited = true

		if budgetBound && untilRoll <= 0 {
			continue
		}
		if err := l.wait(ctx, changed, budgetBound, untilRoll); err != nil {
			return nil, goerr.Wrap(err, "rate limiter acquire cancelled",
				goerr.V("estimated_tokens", estimatedTokens))
		}
	}
}

// wait blocks until the state changes, the window rolls over (when budgetBound), or ctx is done
func (l *Limiter) wait(ctx context.Context, changed <-chan struct{}, budgetBound bool, untilRoll time.Duration) error {
	var timeout <-chan time.Time
	if budgetBound {
		timer := time.NewTimer(untilRoll)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
	case <-timeout:
	}
	return nil
}

// Release returns the permit's slot and adapts the ceiling to outcome.
// Releasing the same permit twice is a no-op.
func (l *Limiter) Release(p *Permit, outcome types.Outcome) {
	if p == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if p.released {
		return
	}
	p.released = true
	l.inFlight--

	l.observeLatency(l.now().Sub(p.acquired))
	// Slower calls shrink what the budget sustains; the ceiling follows the cap down.
	l.ceiling = max(1, min(l.ceiling, l.capLocked()))

	switch outcome {
	case types.OutcomeSuccess:
		l.successes++
		l.streak++
		if l.streak >= l.cfg.IncreaseAfter {
			l.streak = 0
			l.increase()
		}

	case types.OutcomeThrottled:
		l.throttles++
		l.streak = 0
		l.decrease()

	default:
		l.failures++
		l.streak = 0
	}

	l.broadcast()
}

// NoteRetry counts a retry for reporting
func (l *Limiter) NoteRetry() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retries++
}

// Ceiling returns the current concurrency ceiling
func (l *Limiter) Ceiling() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ceiling
}

// Snapshot returns the current state
func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindow(l.now())
	return Snapshot{
		Mode:                 l.cfg.Mode,
		RequestsInWindow:     l.requests,
		TokensInWindow:       l.tokens,
		WindowStart:          l.windowStart,
		InFlight:             l.inFlight,
		Ceiling:              l.ceiling,
		Cap:                  l.capLocked(),
		ConsecutiveSuccesses: l.streak,
		AvgLatency:           l.avgLatency,
		Successes:            l.successes,
		Failures:             l.failures,
		Throttles:            l.throttles,
		Retries:              l.retries,
		Waits:                l.waits,
	}
}

func (l *Limiter) rollWindow(now time.Time) {
	if now.Sub(l.windowStart) >= l.cfg.Window {
		l.windowStart = now
		l.requests = 0
		l.tokens = 0
		l.broadcast()
	}
}

func (l *Limiter) admit(est int) bool {
	if l.inFlight >= l.ceiling {
		return false
	}

	rpmLimit := float64(l.cfg.RPM) * l.cfg.Headroom
	tpmLimit := float64(l.cfg.TPM) * l.cfg.Headroom

	if float64(l.requests) >= rpmLimit && l.requests > 0 {
		return false
	}

	// A request larger than the whole token budget runs alone in a fresh window.
	if float64(est) >= tpmLimit {
		return l.requests == 0 && l.tokens == 0
	}

	return float64(l.tokens+est) < tpmLimit
}

func (l *Limiter) increase() {
	c := l.ceiling
	next := max(c+1, int(math.Ceil(float64(c)*l.cfg.IncreaseFactor)))
	l.ceiling = max(1, min(l.capLocked(), next))
}

func (l *Limiter) decrease() {
	c := l.ceiling
	next := max(1, int(math.Floor(float64(c)*l.cfg.BackoffFactor)))
	if c > 1 && next >= c {
		next = c - 1
	}
	l.ceiling = next
}

// capLocked is the highest ceiling the budget can sustain given observed latency
func (l *Limiter) capLocked() int {
	c := l.cfg.MaxConcurrency
	if l.avgLatency > 0 {
		minutes := l.avgLatency.Minutes()
		budget := int(float64(l.cfg.RPM) / minutes)
		if budget < c {
			c = budget
		}
	}
	return max(1, c)
}

func (l *Limiter) observeLatency(d time.Duration) {
	if d <= 0 {
		return
	}
	if l.avgLatency == 0 {
		l.avgLatency = d
		return
	}
	l.avgLatency = time.Duration(latencyAlpha*float64(d) + (1-latencyAlpha)*float64(l.avgLatency))
}

func (l *Limiter) broadcast() {
	close(l.changed)
	l.changed = make(chan struct{})
}
