package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/urfave/cli/v3"
)

// Supported LLM providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// LLM holds configuration for the LLM client
type LLM struct {
	provider       string
	model          string
	apiKey         string
	geminiProject  string
	geminiLocation string
}

// Flags returns CLI flags for LLM configuration
func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Category:    "LLM",
			Usage:       "LLM provider (openai, gemini)",
			Value:       ProviderOpenAI,
			Sources:     cli.EnvVars("DB4DD_LLM_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Category:    "LLM",
			Usage:       "Model name (default depends on the provider)",
			Sources:     cli.EnvVars("DB4DD_LLM_MODEL"),
			Destination: &x.model,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Category:    "LLM",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("DB4DD_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &x.apiKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Category:    "LLM",
			Usage:       "Google Cloud project ID for Gemini API",
			Sources:     cli.EnvVars("DB4DD_GEMINI_PROJECT"),
			Destination: &x.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Category:    "LLM",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Sources:     cli.EnvVars("DB4DD_GEMINI_LOCATION"),
			Destination: &x.geminiLocation,
		},
	}
}

// Model returns the configured model, or the provider default
func (x *LLM) Model() string {
	if x.model != "" {
		return x.model
	}
	if x.provider == ProviderGemini {
		return DefaultGeminiModel
	}
	return DefaultOpenAIModel
}

// LogAttrs returns log attributes for the configuration. The API key is never logged.
func (x *LLM) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("provider", x.provider),
		slog.String("model", x.Model()),
		slog.Bool("api_key_set", x.apiKey != ""),
		slog.String("gemini_project", x.geminiProject),
		slog.String("gemini_location", x.geminiLocation),
	}
}

// Validate checks the provider has its credentials
func (x *LLM) Validate() error {
	switch x.provider {
	case ProviderOpenAI:
		if x.apiKey == "" {
			return goerr.Wrap(ErrMissingCredential, "openai-api-key is required for the openai provider")
		}
	case ProviderGemini:
		if x.geminiProject == "" {
			return goerr.Wrap(ErrMissingCredential, "gemini-project is required for the gemini provider")
		}
	default:
		return goerr.Wrap(ErrInvalidConfig, "unknown LLM provider", goerr.V("provider", x.provider))
	}
	return nil
}

// Configure creates the LLM client
func (x *LLM) Configure(ctx context.Context) (gollem.LLMClient, error) {
	if err := x.Validate(); err != nil {
		return nil, err
	}

	switch x.provider {
	case ProviderGemini:
		client, err := gemini.New(ctx, x.geminiProject, x.geminiLocation, gemini.WithModel(x.Model()))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	default:
		client, err := openai.New(ctx, x.apiKey, openai.WithModel(x.Model()))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil
	}
}
