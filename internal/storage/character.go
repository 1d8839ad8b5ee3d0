package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/easeaico/eve/internal/emotion"
	"github.com/easeaico/eve/internal/types"
)

type characterModel struct {
	ID           int
	Name         string `gorm:"size:50;uniqueIndex;not null"`
	Description  string
	Personality  string
	Avatar       string
	RoleInWorld  string
	WorldContext string

	SpeechPattern             string
	FavoritePhrases           datatypes.JSON
	SentenceLengthPreference  string `gorm:"size:20"`
	ResponseLengthDefault     string `gorm:"size:50"`
	AskQuestionsFrequency     float64
	EmoticonsFrequency        string `gorm:"size:20"`
	MemoryRetentionPreference string `gorm:"size:20"`

	DefaultEmotion  string `gorm:"size:30"`
	EnabledEmotions datatypes.JSON

	VoiceID    string
	SpeechRate *float64
	Pitch      *float64

	IsActive          bool `gorm:"index"`
	IsDefault         bool `gorm:"index"`
	LastInteractionAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (characterModel) TableName() string {
	return "characters"
}

// CharacterRepo accesses characters data.
type CharacterRepo struct {
	db *gorm.DB
}

// Create validates and inserts a character, assigning its ID.
func (r *CharacterRepo) Create(ctx context.Context, character *types.Character) error {
	if character == nil {
		return fmt.Errorf("character cannot be nil")
	}
	if err := character.Validate(); err != nil {
		return err
	}
	record, err := characterToModel(character)
	if err != nil {
		return err
	}
	if err := conn(ctx, r.db).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: character %q already exists", types.ErrBusinessRule, character.Name)
		}
		return fmt.Errorf("failed to insert character: %w", err)
	}
	character.ID = record.ID
	character.CreatedAt = record.CreatedAt
	character.UpdatedAt = record.UpdatedAt
	return nil
}

func (r *CharacterRepo) GetByID(ctx context.Context, id int) (*types.Character, error) {
	var model characterModel
	if err := conn(ctx, r.db).First(&model, id).Error; err != nil {
		return nil, notFound(err, "character %d", id)
	}
	return characterFromModel(model)
}

func (r *CharacterRepo) GetByName(ctx context.Context, name string) (*types.Character, error) {
	var model characterModel
	if err := conn(ctx, r.db).Where("name = ?", name).First(&model).Error; err != nil {
		return nil, notFound(err, "character %q", name)
	}
	return characterFromModel(model)
}

// GetDefault returns the character flagged default, or the oldest active one.
func (r *CharacterRepo) GetDefault(ctx context.Context) (*types.Character, error) {
	var model characterModel
	err := conn(ctx, r.db).
		Where("is_active = ?", true).
		Order("is_default DESC").
		Order("id ASC").
		First(&model).Error
	if err != nil {
		return nil, notFound(err, "default character")
	}
	return characterFromModel(model)
}

// List returns active characters ordered by id.
func (r *CharacterRepo) List(ctx context.Context) ([]types.Character, error) {
	var records []characterModel
	if err := conn(ctx, r.db).Where("is_active = ?", true).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	characters := make([]types.Character, 0, len(records))
	for _, record := range records {
		c, err := characterFromModel(record)
		if err != nil {
			return nil, err
		}
		characters = append(characters, *c)
	}
	return characters, nil
}

// Touch records the time of the character's latest interaction.
func (r *CharacterRepo) Touch(ctx context.Context, id int, at time.Time) error {
	result := conn(ctx, r.db).Model(&characterModel{}).
		Where("id = ?", id).
		Update("last_interaction_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to touch character: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: character %d", types.ErrNotFound, id)
	}
	return nil
}

func characterToModel(c *types.Character) (characterModel, error) {
	phrases := c.FavoritePhrases
	if phrases == nil {
		phrases = []string{}
	}
	phrasesJSON, err := json.Marshal(phrases)
	if err != nil {
		return characterModel{}, fmt.Errorf("failed to encode favorite phrases: %w", err)
	}
	emotionsJSON, err := json.Marshal(c.EnabledEmotions)
	if err != nil {
		return characterModel{}, fmt.Errorf("failed to encode enabled emotions: %w", err)
	}
	return characterModel{
		ID:                        c.ID,
		Name:                      c.Name,
		Description:               c.Description,
		Personality:               c.Personality,
		Avatar:                    c.Avatar,
		RoleInWorld:               c.RoleInWorld,
		WorldContext:              c.WorldContext,
		SpeechPattern:             c.SpeechPattern,
		FavoritePhrases:           datatypes.JSON(phrasesJSON),
		SentenceLengthPreference:  c.SentenceLengthPreference,
		ResponseLengthDefault:     c.ResponseLengthDefault,
		AskQuestionsFrequency:     c.AskQuestionsFrequency,
		EmoticonsFrequency:        string(c.EmoticonsFrequency),
		MemoryRetentionPreference: string(c.MemoryRetentionPreference),
		DefaultEmotion:            string(c.DefaultEmotion),
		EnabledEmotions:           datatypes.JSON(emotionsJSON),
		VoiceID:                   c.VoiceID,
		SpeechRate:                c.SpeechRate,
		Pitch:                     c.Pitch,
		IsActive:                  c.IsActive,
		IsDefault:                 c.IsDefault,
		LastInteractionAt:         c.LastInteractionAt,
	}, nil
}

func characterFromModel(model characterModel) (*types.Character, error) {
	var phrases []string
	if len(model.FavoritePhrases) > 0 {
		if err := json.Unmarshal(model.FavoritePhrases, &phrases); err != nil {
			return nil, fmt.Errorf("%w: character %d has malformed favorite phrases: %v", types.ErrInvalidState, model.ID, err)
		}
	}
	var enabled emotion.Set
	if err := json.Unmarshal(model.EnabledEmotions, &enabled); err != nil {
		return nil, fmt.Errorf("%w: character %d has invalid enabled emotions: %v", types.ErrInvalidState, model.ID, err)
	}
	character := &types.Character{
		ID:                        model.ID,
		Name:                      model.Name,
		Description:               model.Description,
		Personality:               model.Personality,
		Avatar:                    model.Avatar,
		RoleInWorld:               model.RoleInWorld,
		WorldContext:              model.WorldContext,
		SpeechPattern:             model.SpeechPattern,
		FavoritePhrases:           phrases,
		SentenceLengthPreference:  model.SentenceLengthPreference,
		ResponseLengthDefault:     model.ResponseLengthDefault,
		AskQuestionsFrequency:     model.AskQuestionsFrequency,
		EmoticonsFrequency:        types.EmoticonsFrequency(model.EmoticonsFrequency),
		MemoryRetentionPreference: types.MemoryRetention(model.MemoryRetentionPreference),
		EnabledEmotions:           enabled,
		DefaultEmotion:            emotion.Emotion(model.DefaultEmotion),
		VoiceID:                   model.VoiceID,
		SpeechRate:                model.SpeechRate,
		Pitch:                     model.Pitch,
		IsActive:                  model.IsActive,
		IsDefault:                 model.IsDefault,
		LastInteractionAt:         model.LastInteractionAt,
		CreatedAt:                 model.CreatedAt,
		UpdatedAt:                 model.UpdatedAt,
	}
	if err := character.Validate(); err != nil {
		return nil, fmt.Errorf("%w: stored character %d is invalid: %v", types.ErrInvalidState, model.ID, err)
	}
	return character, nil
}
