package models

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterPrefix  = "openrouter/"
)

// NewOpenRouterModel routes modelName through OpenRouter. The "openrouter/"
// selector prefix is stripped before the request is sent.
func NewOpenRouterModel(ctx context.Context, modelName string, cfg *genai.ClientConfig) (model.LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return newOpenAICompatible(strings.TrimPrefix(modelName, openRouterPrefix), cfg.APIKey, openRouterBaseURL, "openrouter-go")
}
