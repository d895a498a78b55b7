package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/db4dd/db4dd/pkg/cli/config"
	"github.com/db4dd/db4dd/pkg/service/ledger"
	"github.com/db4dd/db4dd/pkg/usecase"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdLedger(configPath *string) *cli.Command {
	var repoCfg config.Repository
	var yes bool

	// withLedger opens the store, runs fn and closes the store
	withLedger := func(ctx context.Context, fn func(uc *usecase.LedgerUseCase) error) error {
		repo, err := repoCfg.Configure(ctx)
		if err != nil {
			return goerr.Wrap(err, "failed to initialize repository")
		}
		defer func() {
			if err := repo.Close(); err != nil {
				logging.Default().Error("failed to close repository", "error", err.Error())
			}
		}()
		return fn(usecase.NewLedgerUseCase(ledger.New(repo.Ledger())))
	}

	before := func(ctx context.Context, c *cli.Command) (context.Context, error) {
		return ctx, applyConfigFile(c, *configPath)
	}

	return &cli.Command{
		Name:  "ledger",
		Usage: "Inspect or reset the processed document ledger",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List processed documents",
				Flags:  repoCfg.Flags(),
				Before: before,
				Action: func(ctx context.Context, c *cli.Command) error {
					return withLedger(ctx, func(uc *usecase.LedgerUseCase) error {
						entries, err := uc.List(ctx)
						if err != nil {
							return goerr.Wrap(err, "failed to list ledger")
						}
						for _, e := range entries {
							_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%s\n",
								e.DocumentKey, e.Status, e.ProcessedAt.Local().Format(time.DateTime), e.OutputPath)
						}
						_, _ = fmt.Fprintf(os.Stdout, "%d document(s)\n", len(entries))
						return nil
					})
				},
			},
			{
				Name:  "clear",
				Usage: "Forget every processed document so the next run reprocesses them",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:        "yes",
						Aliases:     []string{"y"},
						Usage:       "Confirm clearing the ledger",
						Destination: &yes,
					},
				}, repoCfg.Flags()...),
				Before: before,
				Action: func(ctx context.Context, c *cli.Command) error {
					if !yes {
						return goerr.Wrap(config.ErrInvalidConfig, "refusing to clear the ledger without --yes")
					}
					return withLedger(ctx, func(uc *usecase.LedgerUseCase) error {
						n, err := uc.Clear(ctx)
						if err != nil {
							return goerr.Wrap(err, "failed to clear ledger")
						}
						_, _ = color.New(color.FgYellow).Fprintf(os.Stdout, "Cleared %d ledger entr%s\n", n, plural(n, "y", "ies"))
						return nil
					})
				},
			},
		},
	}
}
