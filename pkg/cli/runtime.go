package cli

import (
	"context"
	"log/slog"

	"github.com/db4dd/db4dd/pkg/cli/config"
	"github.com/db4dd/db4dd/pkg/domain/interfaces"
	"github.com/db4dd/db4dd/pkg/service/cache"
	"github.com/db4dd/db4dd/pkg/service/dedupe"
	"github.com/db4dd/db4dd/pkg/service/ledger"
	"github.com/db4dd/db4dd/pkg/service/llm"
	"github.com/db4dd/db4dd/pkg/service/output"
	"github.com/db4dd/db4dd/pkg/service/ratelimit"
	"github.com/db4dd/db4dd/pkg/service/summarizer"
	"github.com/db4dd/db4dd/pkg/usecase"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// pipelineConfig gathers the flag groups shared by summarize and watch
type pipelineConfig struct {
	llm       config.LLM
	rateLimit config.RateLimit
	repo      config.Repository
	pipeline  config.Pipeline
}

func (p *pipelineConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, p.pipeline.Flags()...)
	flags = append(flags, p.llm.Flags()...)
	flags = append(flags, p.rateLimit.Flags()...)
	flags = append(flags, p.repo.Flags()...)
	return flags
}

// runtime holds the services of one process. Every document shares its limiter and cache.
type runtime struct {
	repo    interfaces.Repository
	limiter *ratelimit.Limiter
	cache   *cache.Service
	gateway *llm.Gateway
	ledger  *ledger.Service
	output  *output.Service
	uc      *usecase.UseCases
}

// close releases the output writer and the store
func (r *runtime) close() {
	if r.output != nil {
		if err := r.output.Close(); err != nil {
			logging.Default().Error("failed to close output writer", "error", err.Error())
		}
	}
	if r.repo != nil {
		if err := r.repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}
}

// buildRuntime wires the pipeline. When withLLM is false no provider client is created,
// which lets a dry run work without credentials.
func buildRuntime(ctx context.Context, cfg *pipelineConfig, withLLM bool) (_ *runtime, err error) {
	if err := cfg.pipeline.Validate(); err != nil {
		return nil, err
	}

	rt := &runtime{}
	defer func() {
		if err != nil {
			rt.close()
		}
	}()

	rt.repo, err = cfg.repo.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}

	rt.limiter, err = cfg.rateLimit.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize rate limiter")
	}

	var cacheOpts []cache.Option
	if !cfg.pipeline.CacheEnabled() {
		cacheOpts = append(cacheOpts, cache.WithDisabled())
	}
	rt.cache = cache.New(rt.repo.Cache(), cacheOpts...)

	var gen summarizer.Generator
	if withLLM {
		client, err := cfg.llm.Configure(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize LLM client")
		}

		gwOpts := []llm.Option{llm.WithCallTimeout(cfg.pipeline.CallTimeout())}
		for name, schema := range summarizer.Schemas() {
			gwOpts = append(gwOpts, llm.WithSchema(name, schema))
		}
		rt.gateway = llm.New(client, cfg.llm.Model(), rt.limiter, rt.cache, gwOpts...)
		gen = rt.gateway
	}

	deduper, err := dedupe.New(dedupe.WithThreshold(cfg.pipeline.DedupeThreshold()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize deduplicator")
	}

	sum := summarizer.New(gen, deduper, rt.limiter, cfg.pipeline.ChunkSize(),
		summarizer.WithMaxWorkers(cfg.pipeline.ChunkWorkers()))

	writer, err := output.NewWriter(ctx, cfg.pipeline.Output())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize output writer")
	}
	rt.output = output.New(writer)
	rt.ledger = ledger.New(rt.repo.Ledger())

	rt.uc = usecase.New(sum, rt.ledger, rt.output, rt.cache, cfg.pipeline.UseCaseOptions()...)

	logging.Default().Info("Pipeline configured",
		slog.GroupAttrs("pipeline", cfg.pipeline.LogAttrs()...),
		slog.GroupAttrs("llm", cfg.llm.LogAttrs()...),
		slog.GroupAttrs("rate_limit", cfg.rateLimit.LogAttrs()...),
		slog.GroupAttrs("store", cfg.repo.LogAttrs()...),
	)
	return rt, nil
}

// applyConfigFile fills unset flags of c from the --config file, if one is given
func applyConfigFile(c *cli.Command, path string) error {
	if path == "" {
		return nil
	}
	f, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	return f.Apply(c)
}
