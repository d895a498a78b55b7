package config

import "github.com/db4dd/db4dd/pkg/service/ratelimit"

// NewLLMForTest creates an LLM config for testing purposes
func NewLLMForTest(provider, model, apiKey, geminiProject string) *LLM {
	return &LLM{
		provider:       provider,
		model:          model,
		apiKey:         apiKey,
		geminiProject:  geminiProject,
		geminiLocation: "us-central1",
	}
}

// NewRateLimitForTest creates a RateLimit config for testing purposes
func NewRateLimitForTest(mode string, rpm, tpm, maxConcurrency int) *RateLimit {
	return &RateLimit{
		rpm:            rpm,
		tpm:            tpm,
		maxConcurrency: maxConcurrency,
		mode:           mode,
		maxRetries:     ratelimit.DefaultMaxRetries,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, sqlitePath string) *Repository {
	return &Repository{
		backend:    backend,
		sqlitePath: sqlitePath,
	}
}

// NewPipelineForTest creates a Pipeline config with flag defaults for testing purposes
func NewPipelineForTest(input, output string) *Pipeline {
	return &Pipeline{
		input:           input,
		output:          output,
		chunkSize:       2000,
		workers:         4,
		chunkWorkers:    40,
		dedupeThreshold: 0.8,
		callTimeout:     DefaultCallTimeout,
	}
}

var ParseLevel = parseLevel
