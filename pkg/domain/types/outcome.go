package types

// Outcome is the result of one outbound call, reported back to the rate limiter
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeThrottled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// RetryState is the state of a single bounded retry sequence
type RetryState string

const (
	RetryStateIdle      RetryState = "idle"
	RetryStateWaiting   RetryState = "waiting"
	RetryStateRetrying  RetryState = "retrying"
	RetryStateSucceeded RetryState = "succeeded"
	RetryStateFailed    RetryState = "failed"
)

// IsTerminal reports whether no further transition can happen
func (s RetryState) IsTerminal() bool {
	return s == RetryStateSucceeded || s == RetryStateFailed
}
