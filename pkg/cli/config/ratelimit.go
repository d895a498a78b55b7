package config

import (
	"log/slog"

	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/service/ratelimit"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// RateLimit holds the adaptive rate limiter flags
type RateLimit struct {
	rpm            int
	tpm            int
	maxConcurrency int
	mode           string
	maxRetries     int
}

// Flags returns CLI flags for rate limiting
func (r *RateLimit) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "rpm",
			Category:    "Rate limit",
			Usage:       "Requests per minute budget",
			Value:       ratelimit.DefaultRPM,
			Sources:     cli.EnvVars("DB4DD_RPM"),
			Destination: &r.rpm,
		},
		&cli.IntFlag{
			Name:        "tpm",
			Category:    "Rate limit",
			Usage:       "Tokens per minute budget",
			Value:       ratelimit.DefaultTPM,
			Sources:     cli.EnvVars("DB4DD_TPM"),
			Destination: &r.tpm,
		},
		&cli.IntFlag{
			Name:        "max-concurrency",
			Category:    "Rate limit",
			Usage:       "Upper bound of concurrent API calls",
			Value:       ratelimit.DefaultMaxConcurrency,
			Sources:     cli.EnvVars("DB4DD_MAX_CONCURRENCY"),
			Destination: &r.maxConcurrency,
		},
		&cli.StringFlag{
			Name:        "mode",
			Category:    "Rate limit",
			Usage:       "Limiter preset (aggressive, conservative)",
			Value:       string(types.ModeAggressive),
			Sources:     cli.EnvVars("DB4DD_MODE"),
			Destination: &r.mode,
		},
		&cli.IntFlag{
			Name:        "max-retries",
			Category:    "Rate limit",
			Usage:       "Retries per API call on throttling or transient errors",
			Value:       ratelimit.DefaultMaxRetries,
			Sources:     cli.EnvVars("DB4DD_MAX_RETRIES"),
			Destination: &r.maxRetries,
		},
	}
}

// LogAttrs returns log attributes for the configuration
func (r *RateLimit) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("rpm", r.rpm),
		slog.Int("tpm", r.tpm),
		slog.Int("max_concurrency", r.maxConcurrency),
		slog.String("mode", r.mode),
		slog.Int("max_retries", r.maxRetries),
	}
}

// Config builds the limiter configuration for the selected preset
func (r *RateLimit) Config() (ratelimit.Config, error) {
	mode, err := types.ParseMode(r.mode)
	if err != nil {
		return ratelimit.Config{}, goerr.Wrap(ErrInvalidConfig, "invalid limiter mode", goerr.V("mode", r.mode))
	}
	if r.rpm <= 0 || r.tpm <= 0 || r.maxConcurrency <= 0 {
		return ratelimit.Config{}, goerr.Wrap(ErrInvalidConfig, "rate limit budgets must be positive",
			goerr.V("rpm", r.rpm),
			goerr.V("tpm", r.tpm),
			goerr.V("max_concurrency", r.maxConcurrency))
	}
	if r.maxRetries < 0 {
		return ratelimit.Config{}, goerr.Wrap(ErrInvalidConfig, "max-retries must not be negative", goerr.V("max_retries", r.maxRetries))
	}

	cfg := ratelimit.NewConfig(mode, r.rpm, r.tpm, r.maxConcurrency)
	cfg.MaxRetries = r.maxRetries
	return cfg, nil
}

// Configure creates the limiter shared by every API call of the process
func (r *RateLimit) Configure() (*ratelimit.Limiter, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	return ratelimit.New(cfg)
}
