package config_test

import (
	"path/filepath"
	"testing"

	"github.com/db4dd/db4dd/pkg/cli/config"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestRateLimit_Config(t *testing.T) {
	t.Run("aggressive keeps budgets", func(t *testing.T) {
		cfg, err := config.NewRateLimitForTest("aggressive", 5000, 200000, 50).Config()
		gt.NoError(t, err).Required()
		gt.Value(t, cfg.Mode).Equal(types.ModeAggressive)
		gt.Number(t, cfg.RPM).Equal(5000)
	})

	t.Run("conservative clamps budgets", func(t *testing.T) {
		cfg, err := config.NewRateLimitForTest("conservative", 5000, 200000, 50).Config()
		gt.NoError(t, err).Required()
		gt.Number(t, cfg.RPM).LessOrEqual(3000)
		gt.Number(t, cfg.TPM).LessOrEqual(150000)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := config.NewRateLimitForTest("reckless", 5000, 200000, 50).Config()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("zero budget", func(t *testing.T) {
		_, err := config.NewRateLimitForTest("aggressive", 0, 200000, 50).Config()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("configure builds limiter", func(t *testing.T) {
		limiter, err := config.NewRateLimitForTest("aggressive", 100, 10000, 8).Configure()
		gt.NoError(t, err).Required()
		gt.Number(t, limiter.Ceiling()).Greater(0)
	})
}

func TestRepository_Configure(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest("memory", "").Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.Value(t, repo.Cache()).NotNil()
		gt.NoError(t, repo.Close())
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.db")
		repo, err := config.NewRepositoryForTest("sqlite", path).Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.Value(t, repo.Ledger()).NotNil()
		gt.NoError(t, repo.Close())
	})

	t.Run("redis without url", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("redis", "").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("firestore without project", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("firestore", "").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("mongo", "").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestParseLevel(t *testing.T) {
	_, err := config.ParseLevel("debug")
	gt.NoError(t, err)
	_, err = config.ParseLevel("verbose")
	gt.Value(t, err).NotNil()
}
