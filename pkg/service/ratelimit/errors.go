package ratelimit

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrThrottled marks a provider response asking the caller to slow down
	ErrThrottled = goerr.New("request throttled by provider")
	// ErrTransient marks a provider failure worth retrying
	ErrTransient = goerr.New("transient provider error")
	// ErrRetryExhausted is returned when every attempt failed with a retryable error
	ErrRetryExhausted = goerr.New("retry attempts exhausted")
)

var throttleMarkers = []string{
	"429",
	"rate limit",
	"rate_limit",
	"ratelimit",
	"too many requests",
	"resource_exhausted",
	"resource exhausted",
	"quota",
}

var transientMarkers = []string{
	"502",
	"503",
	"504",
	"timeout",
	"timed out",
	"unavailable",
	"overloaded",
	"connection reset",
	"unexpected eof",
	"internal server error",
	"bad gateway",
}

// IsThrottled reports whether err means the provider is rate limiting us
func IsThrottled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrThrottled) {
		return true
	}
	return containsAny(err.Error(), throttleMarkers)
}

// IsRetryable reports whether another attempt may succeed.
// Cancellation is never retryable; a per-call deadline is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsThrottled(err) || errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return containsAny(err.Error(), transientMarkers)
}

func containsAny(msg string, markers []string) bool {
	msg = strings.ToLower(msg)
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
