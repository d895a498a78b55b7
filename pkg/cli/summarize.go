package cli

import (
	"context"
	"os"

	"github.com/db4dd/db4dd/pkg/service/source"
	"github.com/db4dd/db4dd/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdSummarize(configPath *string) *cli.Command {
	var cfg pipelineConfig

	return &cli.Command{
		Name:    "summarize",
		Aliases: []string{"run"},
		Usage:   "Summarize meeting transcripts into Markdown",
		Flags:   cfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, applyConfigFile(c, *configPath)
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := buildRuntime(ctx, &cfg, !cfg.pipeline.DryRun())
			if err != nil {
				return err
			}
			defer rt.close()

			paths, err := source.Find(cfg.pipeline.Input())
			if err != nil {
				return goerr.Wrap(err, "failed to find input documents")
			}

			if cfg.pipeline.DryRun() {
				plans, err := rt.uc.Summarize.Plan(ctx, paths)
				if err != nil {
					return goerr.Wrap(err, "failed to plan run")
				}
				printPlans(os.Stdout, plans)
				return nil
			}

			result, runErr := rt.uc.Summarize.Run(ctx, paths)
			if result != nil {
				printResult(os.Stdout, result)
			}
			if runErr != nil {
				return runErr
			}
			return usecase.Failed(result)
		},
	}
}
