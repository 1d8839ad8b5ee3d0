package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/eve/internal/types"
)

// runtimeConfigID is the primary key of the single configuration row.
const runtimeConfigID = 1

type runtimeConfigModel struct {
	ID                         int
	Mode                       string `gorm:"size:10;not null"`
	ModelName                  string `gorm:"size:100;not null"`
	GPULayers                  int    `gorm:"column:gpu_layers"`
	Temperature                float64
	MaxTokens                  int
	OpenAIAPIKey               string `gorm:"column:openai_api_key"`
	AnthropicAPIKey            string
	ConversationMemoryLength   int
	EmotionConfidenceThreshold float64
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

func (runtimeConfigModel) TableName() string {
	return "runtime_config"
}

// RuntimeConfigRepo reads and writes the single runtime configuration row.
type RuntimeConfigRepo struct {
	db *gorm.DB
}

// Load returns the stored configuration, writing the defaults on first use.
func (r *RuntimeConfigRepo) Load(ctx context.Context) (types.RuntimeConfig, error) {
	var model runtimeConfigModel
	err := conn(ctx, r.db).First(&model, runtimeConfigID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg := types.DefaultRuntimeConfig()
		if err := r.Save(ctx, cfg); err != nil {
			return types.RuntimeConfig{}, err
		}
		return r.Load(ctx)
	}
	if err != nil {
		return types.RuntimeConfig{}, fmt.Errorf("failed to get runtime config: %w", err)
	}
	return runtimeConfigFromModel(model), nil
}

// Save validates cfg and upserts it.
func (r *RuntimeConfigRepo) Save(ctx context.Context, cfg types.RuntimeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	record := runtimeConfigModel{
		ID:                         runtimeConfigID,
		Mode:                       string(cfg.Mode),
		ModelName:                  cfg.ModelName,
		GPULayers:                  cfg.GPULayers,
		Temperature:                cfg.Temperature,
		MaxTokens:                  cfg.MaxTokens,
		OpenAIAPIKey:               cfg.OpenAIAPIKey,
		AnthropicAPIKey:            cfg.AnthropicAPIKey,
		ConversationMemoryLength:   cfg.ConversationMemoryLength,
		EmotionConfidenceThreshold: cfg.EmotionConfidenceThreshold,
	}
	if err := conn(ctx, r.db).Save(&record).Error; err != nil {
		return fmt.Errorf("failed to save runtime config: %w", err)
	}
	return nil
}

func runtimeConfigFromModel(model runtimeConfigModel) types.RuntimeConfig {
	return types.RuntimeConfig{
		Mode:                       types.AIMode(model.Mode),
		ModelName:                  model.ModelName,
		GPULayers:                  model.GPULayers,
		Temperature:                model.Temperature,
		MaxTokens:                  model.MaxTokens,
		OpenAIAPIKey:               model.OpenAIAPIKey,
		AnthropicAPIKey:            model.AnthropicAPIKey,
		ConversationMemoryLength:   model.ConversationMemoryLength,
		EmotionConfidenceThreshold: model.EmotionConfidenceThreshold,
		UpdatedAt:                  model.UpdatedAt,
	}
}
