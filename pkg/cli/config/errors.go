package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound    = goerr.New("configuration file not found")
	ErrInvalidConfig     = goerr.New("invalid configuration")
	ErrMissingCredential = goerr.New("missing LLM credential")
	ErrUnknownConfigKey  = goerr.New("unknown configuration key")
)

// Context keys for error values
const (
	ConfigPathKey = "config_path"
	ConfigKeyKey  = "config_key"
)
