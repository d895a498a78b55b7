package model

import "github.com/db4dd/db4dd/pkg/domain/types"

// LLMRequest is one outbound generation request. Schema names the JSON response schema.
type LLMRequest struct {
	Stage        types.Stage
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int
	Schema       string
}

// EstimatedTokens is the budget charged to the rate limiter: prompt plus response allowance
func (r LLMRequest) EstimatedTokens() int {
	return EstimateTokens(r.SystemPrompt) + EstimateTokens(r.Prompt) + r.MaxTokens
}
