package config_test

import (
	"errors"
	"testing"

	"github.com/db4dd/db4dd/pkg/cli/config"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestConfigErrors_SentinelIdentification(t *testing.T) {
	sentinels := []error{
		config.ErrConfigNotFound,
		config.ErrInvalidConfig,
		config.ErrMissingCredential,
		config.ErrUnknownConfigKey,
	}

	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			err := goerr.Wrap(sentinel, "wrapped", goerr.V(config.ConfigPathKey, "db4dd.toml"))
			gt.Bool(t, errors.Is(err, sentinel)).True()

			for _, other := range sentinels {
				if other != sentinel {
					gt.Bool(t, errors.Is(err, other)).False()
				}
			}
		})
	}
}
