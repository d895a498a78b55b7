package types

import "fmt"

// Mode selects the rate limiter preset
type Mode string

const (
	ModeConservative Mode = "conservative"
	ModeAggressive   Mode = "aggressive"
)

// AllModes returns all valid limiter modes
func AllModes() []Mode {
	return []Mode{ModeConservative, ModeAggressive}
}

// IsValid checks if the mode is valid
func (m Mode) IsValid() bool {
	switch m {
	case ModeConservative, ModeAggressive:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	return string(m)
}

// ParseMode parses a string into a Mode
func ParseMode(s string) (Mode, error) {
	mode := Mode(s)
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid mode: %s", s)
	}
	return mode, nil
}
