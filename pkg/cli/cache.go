package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/db4dd/db4dd/pkg/cli/config"
	"github.com/db4dd/db4dd/pkg/service/cache"
	"github.com/db4dd/db4dd/pkg/usecase"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// DefaultCacheMaxAge is the retention used by cache evict and the watch mode worker
const DefaultCacheMaxAge = "7d"

func cmdCache(configPath *string) *cli.Command {
	var repoCfg config.Repository
	var maxAge string

	return &cli.Command{
		Name:  "cache",
		Usage: "Maintain the LLM response cache",
		Commands: []*cli.Command{
			{
				Name:  "evict",
				Usage: "Delete cache entries older than --cache-max-age",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:        "cache-max-age",
						Aliases:     []string{"max-age"},
						Usage:       "Maximum entry age, e.g. 7d, 36h",
						Value:       DefaultCacheMaxAge,
						Sources:     cli.EnvVars("DB4DD_CACHE_MAX_AGE"),
						Destination: &maxAge,
					},
				}, repoCfg.Flags()...),
				Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
					return ctx, applyConfigFile(c, *configPath)
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					age, err := parseDuration(maxAge)
					if err != nil {
						return err
					}

					repo, err := repoCfg.Configure(ctx)
					if err != nil {
						return goerr.Wrap(err, "failed to initialize repository")
					}
					defer func() {
						if err := repo.Close(); err != nil {
							logging.Default().Error("failed to close repository", "error", err.Error())
						}
					}()

					uc := usecase.NewCacheUseCase(cache.New(repo.Cache()))
					n, err := uc.Evict(ctx, age)
					if err != nil {
						return goerr.Wrap(err, "failed to evict cache entries")
					}

					_, _ = fmt.Fprintf(os.Stdout, "Evicted %d cache entr%s older than %s\n", n, plural(n, "y", "ies"), maxAge)
					return nil
				},
			},
		},
	}
}

// parseDuration accepts time.ParseDuration syntax plus a day suffix, e.g. "7d"
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, goerr.Wrap(config.ErrInvalidConfig, "invalid day count", goerr.V("value", s))
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, goerr.Wrap(config.ErrInvalidConfig, "invalid duration", goerr.V("value", s))
	}
	return d, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
