package ratelimit

import (
	"time"

	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Defaults used when a field is left zero
const (
	DefaultRPM            = 5000
	DefaultTPM            = 200000
	DefaultMaxConcurrency = 50
	DefaultMaxRetries     = 5
	DefaultWindow         = time.Minute
	DefaultHeadroom       = 0.95
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 20 * time.Second

	conservativeMaxRPM = 3000
	conservativeMaxTPM = 150000
)

// Config configures a Limiter. Build it with NewConfig to get mode presets.
type Config struct {
	RPM            int
	TPM            int
	MaxConcurrency int
	Mode           types.Mode

	// IncreaseAfter consecutive successes raise the ceiling once
	IncreaseAfter  int
	IncreaseFactor float64
	BackoffFactor  float64

	Window   time.Duration
	Headroom float64

	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewConfig returns the preset for mode with the given budgets.
// Conservative mode clamps the budgets below the provider tier limits.
func NewConfig(mode types.Mode, rpm, tpm, maxConcurrency int) Config {
	cfg := Config{
		RPM:            rpm,
		TPM:            tpm,
		MaxConcurrency: maxConcurrency,
		Mode:           mode,
		Window:         DefaultWindow,
		Headroom:       DefaultHeadroom,
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}

	switch mode {
	case types.ModeAggressive:
		cfg.IncreaseAfter = 10
		cfg.IncreaseFactor = 1.25
		cfg.BackoffFactor = 0.75
	default:
		cfg.Mode = types.ModeConservative
		cfg.IncreaseAfter = 20
		cfg.IncreaseFactor = 1.0
		cfg.BackoffFactor = 0.5
		if cfg.RPM > conservativeMaxRPM {
			cfg.RPM = conservativeMaxRPM
		}
		if cfg.TPM > conservativeMaxTPM {
			cfg.TPM = conservativeMaxTPM
		}
	}

	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.RPM <= 0 {
		c.RPM = DefaultRPM
	}
	if c.TPM <= 0 {
		c.TPM = DefaultTPM
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.IncreaseAfter <= 0 {
		c.IncreaseAfter = 20
	}
	if c.IncreaseFactor < 1 {
		c.IncreaseFactor = 1
	}
	if c.BackoffFactor <= 0 || c.BackoffFactor >= 1 {
		c.BackoffFactor = 0.5
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Headroom <= 0 || c.Headroom > 1 {
		c.Headroom = DefaultHeadroom
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	return c
}

// Validate rejects configurations that can never admit a request
func (c Config) Validate() error {
	if !c.Mode.IsValid() {
		return goerr.New("invalid limiter mode", goerr.V("mode", c.Mode))
	}
	if c.RPM <= 0 || c.TPM <= 0 {
		return goerr.New("rate budget must be positive", goerr.V("rpm", c.RPM), goerr.V("tpm", c.TPM))
	}
	if c.MaxConcurrency <= 0 {
		return goerr.New("max concurrency must be positive", goerr.V("max_concurrency", c.MaxConcurrency))
	}
	return nil
}
