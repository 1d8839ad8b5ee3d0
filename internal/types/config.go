package types

import (
	"fmt"
	"time"
)

// AIMode selects where inference runs.
type AIMode string

const (
	ModeLocal  AIMode = "local"
	ModeRemote AIMode = "remote"
)

// RuntimeConfig holds the tunables read on every turn. Values are treated as
// immutable snapshots; updates produce a new value.
type RuntimeConfig struct {
	Mode                       AIMode    `json:"mode"`
	ModelName                  string    `json:"model_name"`
	GPULayers                  int       `json:"gpu_layers"`
	Temperature                float64   `json:"temperature"`
	MaxTokens                  int       `json:"max_tokens"`
	OpenAIAPIKey               string    `json:"openai_api_key,omitempty"`
	AnthropicAPIKey            string    `json:"anthropic_api_key,omitempty"`
	ConversationMemoryLength   int       `json:"conversation_memory_length"`
	EmotionConfidenceThreshold float64   `json:"emotion_confidence_threshold"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// DefaultRuntimeConfig is written on first start.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Mode:                       ModeLocal,
		ModelName:                  "gemma3:latest",
		GPULayers:                  60,
		Temperature:                0.7,
		MaxTokens:                  4096,
		ConversationMemoryLength:   10,
		EmotionConfidenceThreshold: 0.6,
	}
}

// Validate checks field bounds.
func (c RuntimeConfig) Validate() error {
	switch c.Mode {
	case ModeLocal, ModeRemote:
	default:
		return fmt.Errorf("%w: %w: invalid AI mode %q", ErrBusinessRule, ErrConfig, c.Mode)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name is required", ErrBusinessRule)
	}
	if c.GPULayers < 0 || c.GPULayers > 200 {
		return fmt.Errorf("%w: gpu_layers must be within [0,200], got %d", ErrBusinessRule, c.GPULayers)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within [0,2], got %v", ErrBusinessRule, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 32000 {
		return fmt.Errorf("%w: max_tokens must be within [1,32000], got %d", ErrBusinessRule, c.MaxTokens)
	}
	if c.ConversationMemoryLength < 1 || c.ConversationMemoryLength > 100 {
		return fmt.Errorf("%w: conversation_memory_length must be within [1,100], got %d", ErrBusinessRule, c.ConversationMemoryLength)
	}
	if c.EmotionConfidenceThreshold < 0 || c.EmotionConfidenceThreshold > 1 {
		return fmt.Errorf("%w: emotion_confidence_threshold must be within [0,1], got %v", ErrBusinessRule, c.EmotionConfidenceThreshold)
	}
	return nil
}

// RuntimeConfigPatch is a partial update; nil fields are left unchanged.
type RuntimeConfigPatch struct {
	Mode                       *AIMode  `json:"mode,omitempty"`
	ModelName                  *string  `json:"model_name,omitempty"`
	GPULayers                  *int     `json:"gpu_layers,omitempty"`
	Temperature                *float64 `json:"temperature,omitempty"`
	MaxTokens                  *int     `json:"max_tokens,omitempty"`
	OpenAIAPIKey               *string  `json:"openai_api_key,omitempty"`
	AnthropicAPIKey            *string  `json:"anthropic_api_key,omitempty"`
	ConversationMemoryLength   *int     `json:"conversation_memory_length,omitempty"`
	EmotionConfidenceThreshold *float64 `json:"emotion_confidence_threshold,omitempty"`
}

// Apply returns a copy of c with the patch applied.
func (p RuntimeConfigPatch) Apply(c RuntimeConfig) RuntimeConfig {
	if p.Mode != nil {
		c.Mode = *p.Mode
	}
	if p.ModelName != nil {
		c.ModelName = *p.ModelName
	}
	if p.GPULayers != nil {
		c.GPULayers = *p.GPULayers
	}
	if p.Temperature != nil {
		c.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		c.MaxTokens = *p.MaxTokens
	}
	if p.OpenAIAPIKey != nil {
		c.OpenAIAPIKey = *p.OpenAIAPIKey
	}
	if p.AnthropicAPIKey != nil {
		c.AnthropicAPIKey = *p.AnthropicAPIKey
	}
	if p.ConversationMemoryLength != nil {
		c.ConversationMemoryLength = *p.ConversationMemoryLength
	}
	if p.EmotionConfidenceThreshold != nil {
		c.EmotionConfidenceThreshold = *p.EmotionConfidenceThreshold
	}
	return c
}
