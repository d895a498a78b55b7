package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/db4dd/db4dd/pkg/cli/config"
	"github.com/m-mizutani/gt"
	"github.com/urfave/cli/v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db4dd.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("parses scalar values", func(t *testing.T) {
		path := writeConfig(t, `
rpm = 1000
mode = "conservative"
no-cache = true
dedupe-threshold = 0.75
`)
		f, err := config.LoadFile(path)
		gt.NoError(t, err).Required()
		gt.Array(t, f.Keys()).Length(4)

		v, ok := f.Value("rpm")
		gt.Bool(t, ok).True()
		gt.String(t, v).Equal("1000")

		v, _ = f.Value("no-cache")
		gt.String(t, v).Equal("true")

		v, _ = f.Value("dedupe-threshold")
		gt.String(t, v).Equal("0.75")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})

	t.Run("rejects tables", func(t *testing.T) {
		path := writeConfig(t, "[llm]\nprovider = \"openai\"\n")
		_, err := config.LoadFile(path)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("rejects invalid TOML", func(t *testing.T) {
		path := writeConfig(t, "rpm = = 1\n")
		_, err := config.LoadFile(path)
		gt.Value(t, err).NotNil()
	})
}

func TestFileApply(t *testing.T) {
	run := func(t *testing.T, content string, args []string) (*config.RateLimit, *config.Pipeline, error) {
		t.Helper()
		f, err := config.ParseFile("test.toml", []byte(content))
		gt.NoError(t, err).Required()

		var rl config.RateLimit
		var pl config.Pipeline
		var applyErr error
		cmd := &cli.Command{
			Name:  "summarize",
			Flags: append(rl.Flags(), pl.Flags()...),
			Action: func(ctx context.Context, c *cli.Command) error {
				applyErr = f.Apply(c)
				return nil
			},
		}
		root := &cli.Command{
			Name:     "db4dd",
			Commands: []*cli.Command{cmd, {Name: "ledger", Flags: []cli.Flag{&cli.BoolFlag{Name: "yes"}}}},
		}
		gt.NoError(t, root.Run(t.Context(), append([]string{"db4dd", "summarize"}, args...))).Required()
		return &rl, &pl, applyErr
	}

	t.Run("file fills unset flags", func(t *testing.T) {
		rl, pl, err := run(t, "rpm = 1200\nworkers = 2\nno-cache = true\n", nil)
		gt.NoError(t, err)
		gt.Number(t, rl.LogAttrs()[0].Value.Int64()).Equal(1200)
		gt.Bool(t, pl.CacheEnabled()).False()
	})

	t.Run("command line wins over file", func(t *testing.T) {
		rl, _, err := run(t, "rpm = 1200\n", []string{"--rpm", "900"})
		gt.NoError(t, err)
		gt.Number(t, rl.LogAttrs()[0].Value.Int64()).Equal(900)
	})

	t.Run("keys of other commands are ignored", func(t *testing.T) {
		_, _, err := run(t, "yes = true\n", nil)
		gt.NoError(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, _, err := run(t, "rpms = 10\n", nil)
		gt.Error(t, err).Is(config.ErrUnknownConfigKey)
	})
}

func TestPipeline_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		gt.NoError(t, config.NewPipelineForTest("in", "out").Validate())
	})

	t.Run("input required", func(t *testing.T) {
		gt.Error(t, config.NewPipelineForTest("", "out").Validate()).Is(config.ErrInvalidConfig)
	})

	t.Run("output required", func(t *testing.T) {
		gt.Error(t, config.NewPipelineForTest("in", "").Validate()).Is(config.ErrInvalidConfig)
	})

	t.Run("use case options", func(t *testing.T) {
		gt.Array(t, config.NewPipelineForTest("in", "out").UseCaseOptions()).Length(3)
	})
}
