package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	httpctrl "github.com/db4dd/db4dd/pkg/controller/http"
	"github.com/db4dd/db4dd/pkg/service/source"
	"github.com/db4dd/db4dd/pkg/service/watcher"
	"github.com/db4dd/db4dd/pkg/service/worker"
	"github.com/db4dd/db4dd/pkg/usecase"
	"github.com/db4dd/db4dd/pkg/utils/async"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

func cmdWatch(configPath *string) *cli.Command {
	var cfg pipelineConfig
	var addr string
	var debounce time.Duration
	var evictInterval time.Duration
	var cacheMaxAge string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Category:    "Watch",
			Usage:       "HTTP address for /health and /stats; empty disables the server",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("DB4DD_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "debounce",
			Category:    "Watch",
			Usage:       "Quiet period after the last write before a file is processed",
			Value:       watcher.DefaultDebounce,
			Sources:     cli.EnvVars("DB4DD_DEBOUNCE"),
			Destination: &debounce,
		},
		&cli.DurationFlag{
			Name:        "evict-interval",
			Category:    "Watch",
			Usage:       "Interval of cache eviction; 0 disables it",
			Value:       time.Hour,
			Sources:     cli.EnvVars("DB4DD_EVICT_INTERVAL"),
			Destination: &evictInterval,
		},
		&cli.StringFlag{
			Name:        "cache-max-age",
			Category:    "Watch",
			Usage:       "Maximum age of cache entries kept by the eviction worker, e.g. 7d",
			Value:       DefaultCacheMaxAge,
			Sources:     cli.EnvVars("DB4DD_CACHE_MAX_AGE"),
			Destination: &cacheMaxAge,
		},
	}
	flags = append(flags, cfg.Flags()...)

	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"w"},
		Usage:   "Process the input directory, then summarize new transcripts as they arrive",
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, applyConfigFile(c, *configPath)
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			rt, err := buildRuntime(ctx, &cfg, true)
			if err != nil {
				return err
			}
			defer rt.close()

			// Start watching before the initial pass so files arriving meanwhile are not missed.
			// The ledger makes a document seen by both harmless.
			w, err := watcher.New(watcher.WithDebounce(debounce))
			if err != nil {
				return goerr.Wrap(err, "failed to create watcher")
			}
			defer func() {
				if err := w.Close(); err != nil {
					logger.Error("failed to close watcher", "error", err.Error())
				}
			}()
			events, err := w.Watch(ctx, cfg.pipeline.Input())
			if err != nil {
				return goerr.Wrap(err, "failed to watch input directory", goerr.V("dir", cfg.pipeline.Input()))
			}

			var evictor *worker.CacheEvictionWorker
			if evictInterval > 0 && rt.cache.Enabled() {
				maxAge, err := parseDuration(cacheMaxAge)
				if err != nil {
					return err
				}
				evictor, err = worker.NewCacheEvictionWorker(rt.cache, maxAge, evictInterval)
				if err != nil {
					return goerr.Wrap(err, "failed to create cache eviction worker")
				}
				evictor.Start(ctx)
			}

			var server *http.Server
			errCh := make(chan error, 1)
			if addr != "" {
				server = &http.Server{
					Addr:              addr,
					Handler:           newStatusServer(rt),
					ReadHeaderTimeout: 30 * time.Second,
				}
				go func() {
					logger.Info("Starting HTTP server", "addr", addr)
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- goerr.Wrap(err, "failed to start server")
					}
				}()
			}

			var inflight sync.WaitGroup
			dispatch := func(paths []string) {
				inflight.Add(1)
				async.Dispatch(ctx, "summarize", func(context.Context) error {
					defer inflight.Done()
					// Run under the command context so shutdown cancels documents not yet committed
					result, err := rt.uc.Summarize.Run(ctx, paths)
					if result != nil {
						printResult(os.Stdout, result)
					}
					if err != nil {
						return err
					}
					return usecase.Failed(result)
				})
			}

			initial, err := source.Find(cfg.pipeline.Input())
			if err != nil {
				return goerr.Wrap(err, "failed to find input documents")
			}
			if len(initial) > 0 {
				dispatch(initial)
			}
			logger.Info("Watching for transcripts", "dir", cfg.pipeline.Input(), "initial", len(initial))

		loop:
			for {
				select {
				case path, ok := <-events:
					if !ok {
						break loop
					}
					logger.Info("Transcript changed", "path", path)
					dispatch([]string{path})
				case err := <-errCh:
					return err
				case <-ctx.Done():
					break loop
				}
			}

			logger.Info("Shutting down watch mode")
			if evictor != nil {
				evictor.Stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}
			}

			done := make(chan struct{})
			go func() {
				inflight.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-shutdownCtx.Done():
				logger.Warn("Timed out waiting for in-flight documents; they stay unrecorded in the ledger")
			}

			logger.Info("Watch mode stopped")
			return nil
		},
	}
}

func newStatusServer(rt *runtime) http.Handler {
	opts := []httpctrl.Options{
		httpctrl.WithStats("limiter", func() any { return rt.limiter.Snapshot() }),
		httpctrl.WithStats("cache", func() any { return rt.cache.Stats() }),
		httpctrl.WithLedger(rt.ledger),
	}
	if rt.gateway != nil {
		opts = append(opts, httpctrl.WithStats("llm", func() any { return rt.gateway.Stats() }))
	}
	return httpctrl.New(opts...)
}
