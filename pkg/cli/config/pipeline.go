package config

import (
	"log/slog"
	"time"

	"github.com/db4dd/db4dd/pkg/service/chunker"
	"github.com/db4dd/db4dd/pkg/service/dedupe"
	"github.com/db4dd/db4dd/pkg/service/summarizer"
	"github.com/db4dd/db4dd/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// DefaultCallTimeout bounds one provider call
const DefaultCallTimeout = 2 * time.Minute

// Pipeline holds CLI flags for the summarization pipeline
type Pipeline struct {
	input           string
	output          string
	chunkSize       int
	workers         int
	chunkWorkers    int
	dedupeThreshold float64
	callTimeout     time.Duration
	noCache         bool
	overwrite       bool
	dryRun          bool
	noStats         bool
}

// Flags returns CLI flags for pipeline configuration
func (p *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Category:    "Pipeline",
			Usage:       "Input .txt file or directory searched recursively",
			Sources:     cli.EnvVars("DB4DD_INPUT"),
			Destination: &p.input,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Category:    "Pipeline",
			Usage:       "Output directory or gs://bucket/prefix",
			Value:       "output",
			Sources:     cli.EnvVars("DB4DD_OUTPUT"),
			Destination: &p.output,
		},
		&cli.IntFlag{
			Name:        "chunk-size",
			Category:    "Pipeline",
			Usage:       "Chunk size hint in characters",
			Value:       chunker.DefaultSizeHint,
			Sources:     cli.EnvVars("DB4DD_CHUNK_SIZE"),
			Destination: &p.chunkSize,
		},
		&cli.IntFlag{
			Name:        "workers",
			Aliases:     []string{"w"},
			Category:    "Pipeline",
			Usage:       "Documents processed concurrently",
			Value:       usecase.DefaultWorkers,
			Sources:     cli.EnvVars("DB4DD_WORKERS"),
			Destination: &p.workers,
		},
		&cli.IntFlag{
			Name:        "chunk-workers",
			Category:    "Pipeline",
			Usage:       "Upper bound of chunk-level fan-out per document",
			Value:       summarizer.DefaultMaxWorkers,
			Sources:     cli.EnvVars("DB4DD_CHUNK_WORKERS"),
			Destination: &p.chunkWorkers,
		},
		&cli.FloatFlag{
			Name:        "dedupe-threshold",
			Category:    "Pipeline",
			Usage:       "Jaccard similarity at or above which list entries are duplicates",
			Value:       dedupe.DefaultThreshold,
			Sources:     cli.EnvVars("DB4DD_DEDUPE_THRESHOLD"),
			Destination: &p.dedupeThreshold,
		},
		&cli.DurationFlag{
			Name:        "call-timeout",
			Category:    "Pipeline",
			Usage:       "Timeout of a single LLM call; timed out calls are retried",
			Value:       DefaultCallTimeout,
			Sources:     cli.EnvVars("DB4DD_CALL_TIMEOUT"),
			Destination: &p.callTimeout,
		},
		&cli.BoolFlag{
			Name:        "no-cache",
			Category:    "Pipeline",
			Usage:       "Disable the response cache",
			Sources:     cli.EnvVars("DB4DD_NO_CACHE"),
			Destination: &p.noCache,
		},
		&cli.BoolFlag{
			Name:        "overwrite",
			Category:    "Pipeline",
			Usage:       "Reprocess documents already recorded in the ledger",
			Sources:     cli.EnvVars("DB4DD_OVERWRITE"),
			Destination: &p.overwrite,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Category:    "Pipeline",
			Usage:       "Show what would be processed without calling the LLM",
			Sources:     cli.EnvVars("DB4DD_DRY_RUN"),
			Destination: &p.dryRun,
		},
		&cli.BoolFlag{
			Name:        "no-stats",
			Category:    "Pipeline",
			Usage:       "Do not write processing_stats.json next to the outputs",
			Sources:     cli.EnvVars("DB4DD_NO_STATS"),
			Destination: &p.noStats,
		},
	}
}

// LogAttrs returns log attributes for the configuration
func (p *Pipeline) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("input", p.input),
		slog.String("output", p.output),
		slog.Int("chunk_size", p.chunkSize),
		slog.Int("workers", p.workers),
		slog.Int("chunk_workers", p.chunkWorkers),
		slog.Float64("dedupe_threshold", p.dedupeThreshold),
		slog.Duration("call_timeout", p.callTimeout),
		slog.Bool("cache", !p.noCache),
		slog.Bool("overwrite", p.overwrite),
		slog.Bool("dry_run", p.dryRun),
	}
}

// Validate checks the pipeline settings
func (p *Pipeline) Validate() error {
	if p.input == "" {
		return goerr.Wrap(ErrInvalidConfig, "input is required")
	}
	if p.output == "" {
		return goerr.Wrap(ErrInvalidConfig, "output is required")
	}
	if p.workers < 1 {
		return goerr.Wrap(ErrInvalidConfig, "workers must be at least 1", goerr.V("workers", p.workers))
	}
	if p.chunkWorkers < 1 {
		return goerr.Wrap(ErrInvalidConfig, "chunk-workers must be at least 1", goerr.V("chunk_workers", p.chunkWorkers))
	}
	if p.chunkSize < 0 {
		return goerr.Wrap(ErrInvalidConfig, "chunk-size must not be negative", goerr.V("chunk_size", p.chunkSize))
	}
	if p.dedupeThreshold <= 0 || p.dedupeThreshold > 1 {
		return goerr.Wrap(ErrInvalidConfig, "dedupe-threshold must be in (0, 1]", goerr.V("dedupe_threshold", p.dedupeThreshold))
	}
	return nil
}

// Input returns the input file or directory
func (p *Pipeline) Input() string {
	return p.input
}

// Output returns the output destination
func (p *Pipeline) Output() string {
	return p.output
}

// ChunkSize returns the chunk size hint
func (p *Pipeline) ChunkSize() int {
	return p.chunkSize
}

// ChunkWorkers returns the chunk-level fan-out bound
func (p *Pipeline) ChunkWorkers() int {
	return p.chunkWorkers
}

// DedupeThreshold returns the near-duplicate similarity threshold
func (p *Pipeline) DedupeThreshold() float64 {
	return p.dedupeThreshold
}

// CallTimeout returns the per-call timeout
func (p *Pipeline) CallTimeout() time.Duration {
	return p.callTimeout
}

// CacheEnabled reports whether the response cache is used
func (p *Pipeline) CacheEnabled() bool {
	return !p.noCache
}

// DryRun reports whether only a plan is printed
func (p *Pipeline) DryRun() bool {
	return p.dryRun
}

// UseCaseOptions converts the document-level settings into usecase options
func (p *Pipeline) UseCaseOptions() []usecase.Option {
	return []usecase.Option{
		usecase.WithWorkers(p.workers),
		usecase.WithOverwrite(p.overwrite),
		usecase.WithStatsFile(!p.noStats),
	}
}
