// Package seed loads characters, users, conversations and runtime settings
// from a YAML file into storage.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/easeaico/eve/internal/emotion"
	"github.com/easeaico/eve/internal/storage"
	"github.com/easeaico/eve/internal/types"
)

// File is the YAML document layout.
type File struct {
	RuntimeConfig *RuntimeConfig `yaml:"runtime_config"`
	Characters    []Character    `yaml:"characters"`
	Users         []User         `yaml:"users"`
	Conversations []Conversation `yaml:"conversations"`
}

// RuntimeConfig is a partial runtime configuration; omitted keys keep their
// stored value.
type RuntimeConfig struct {
	Mode                       *types.AIMode `yaml:"mode"`
	ModelName                  *string       `yaml:"model_name"`
	GPULayers                  *int          `yaml:"gpu_layers"`
	Temperature                *float64      `yaml:"temperature"`
	MaxTokens                  *int          `yaml:"max_tokens"`
	OpenAIAPIKey               *string       `yaml:"openai_api_key"`
	AnthropicAPIKey            *string       `yaml:"anthropic_api_key"`
	ConversationMemoryLength   *int          `yaml:"conversation_memory_length"`
	EmotionConfidenceThreshold *float64      `yaml:"emotion_confidence_threshold"`
}

func (r RuntimeConfig) patch() types.RuntimeConfigPatch {
	return types.RuntimeConfigPatch{
		Mode:                       r.Mode,
		ModelName:                  r.ModelName,
		GPULayers:                  r.GPULayers,
		Temperature:                r.Temperature,
		MaxTokens:                  r.MaxTokens,
		OpenAIAPIKey:               r.OpenAIAPIKey,
		AnthropicAPIKey:            r.AnthropicAPIKey,
		ConversationMemoryLength:   r.ConversationMemoryLength,
		EmotionConfidenceThreshold: r.EmotionConfidenceThreshold,
	}
}

// Character describes one persona.
type Character struct {
	Name                      string          `yaml:"name"`
	Description               string          `yaml:"description"`
	Personality               string          `yaml:"personality"`
	Avatar                    string          `yaml:"avatar"`
	RoleInWorld               string          `yaml:"role_in_world"`
	WorldContext              string          `yaml:"world_context"`
	SpeechPattern             string          `yaml:"speech_pattern"`
	FavoritePhrases           []string        `yaml:"favorite_phrases"`
	SentenceLengthPreference  string          `yaml:"sentence_length_preference"`
	ResponseLengthDefault     string          `yaml:"response_length_default"`
	AskQuestionsFrequency     float64         `yaml:"ask_questions_frequency"`
	EmoticonsFrequency        string          `yaml:"emoticons_frequency"`
	MemoryRetentionPreference string          `yaml:"memory_retention_preference"`
	EnabledEmotions           emotion.Set     `yaml:"enabled_emotions"`
	DefaultEmotion            emotion.Emotion `yaml:"default_emotion"`
	VoiceID                   string          `yaml:"voice_id"`
	SpeechRate                *float64        `yaml:"speech_rate"`
	Pitch                     *float64        `yaml:"pitch"`
	Inactive                  bool            `yaml:"inactive"`
	IsDefault                 bool            `yaml:"is_default"`
}

func (c Character) toCharacter() (*types.Character, error) {
	return types.NewCharacter(types.Character{
		Name:                      c.Name,
		Description:               c.Description,
		Personality:               c.Personality,
		Avatar:                    c.Avatar,
		RoleInWorld:               c.RoleInWorld,
		WorldContext:              c.WorldContext,
		SpeechPattern:             c.SpeechPattern,
		FavoritePhrases:           c.FavoritePhrases,
		SentenceLengthPreference:  c.SentenceLengthPreference,
		ResponseLengthDefault:     c.ResponseLengthDefault,
		AskQuestionsFrequency:     c.AskQuestionsFrequency,
		EmoticonsFrequency:        types.EmoticonsFrequency(c.EmoticonsFrequency),
		MemoryRetentionPreference: types.MemoryRetention(c.MemoryRetentionPreference),
		EnabledEmotions:           c.EnabledEmotions,
		DefaultEmotion:            c.DefaultEmotion,
		VoiceID:                   c.VoiceID,
		SpeechRate:                c.SpeechRate,
		Pitch:                     c.Pitch,
		IsActive:                  !c.Inactive,
		IsDefault:                 c.IsDefault,
	})
}

// User describes the human side of conversations.
type User struct {
	Name    string            `yaml:"name"`
	Gender  string            `yaml:"gender"`
	Age     *int              `yaml:"age"`
	Profile types.UserProfile `yaml:"profile"`
}

// Conversation links a character and an optional user by name.
type Conversation struct {
	Character        string `yaml:"character"`
	User             string `yaml:"user"`
	Title            string `yaml:"title"`
	RelationshipType string `yaml:"relationship_type"`
	UserIntent       string `yaml:"user_intent"`
	WorldState       string `yaml:"world_state"`
}

// ConfigUpdater applies runtime configuration changes.
type ConfigUpdater interface {
	Update(ctx context.Context, patch types.RuntimeConfigPatch) (types.RuntimeConfig, error)
}

// Summary counts what Apply created or skipped.
type Summary struct {
	CharactersCreated    int
	CharactersSkipped    int
	UsersCreated         int
	UsersSkipped         int
	ConversationsCreated int
	ConversationsSkipped int
	RuntimeConfigUpdated bool
}

// Parse decodes a seed document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}
	return &f, nil
}

// LoadFile reads and decodes a seed file from disk.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Apply writes the seed into the store. Characters and users that already
// exist by name are left untouched, and a conversation is skipped when its
// character already has one with the same title and user. Records are written
// in one transaction; the runtime configuration is updated after it commits.
func Apply(ctx context.Context, store *storage.Store, runtime ConfigUpdater, f *File) (Summary, error) {
	var summary Summary
	err := store.InTransaction(ctx, func(ctx context.Context) error {
		for _, c := range f.Characters {
			created, err := applyCharacter(ctx, store, c)
			if err != nil {
				return err
			}
			if created {
				summary.CharactersCreated++
			} else {
				summary.CharactersSkipped++
			}
		}
		for _, u := range f.Users {
			created, err := applyUser(ctx, store, u)
			if err != nil {
				return err
			}
			if created {
				summary.UsersCreated++
			} else {
				summary.UsersSkipped++
			}
		}
		for _, c := range f.Conversations {
			created, err := applyConversation(ctx, store, c)
			if err != nil {
				return err
			}
			if created {
				summary.ConversationsCreated++
			} else {
				summary.ConversationsSkipped++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	if f.RuntimeConfig != nil && runtime != nil {
		if _, err := runtime.Update(ctx, f.RuntimeConfig.patch()); err != nil {
			return summary, fmt.Errorf("failed to apply runtime config: %w", err)
		}
		summary.RuntimeConfigUpdated = true
	}

	slog.Info("seed applied",
		"characters_created", summary.CharactersCreated,
		"users_created", summary.UsersCreated,
		"conversations_created", summary.ConversationsCreated,
		"runtime_config_updated", summary.RuntimeConfigUpdated,
	)
	return summary, nil
}

func applyCharacter(ctx context.Context, store *storage.Store, c Character) (bool, error) {
	_, err := store.Characters.GetByName(ctx, c.Name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return false, err
	}
	character, err := c.toCharacter()
	if err != nil {
		return false, fmt.Errorf("character %q: %w", c.Name, err)
	}
	if err := store.Characters.Create(ctx, character); err != nil {
		return false, fmt.Errorf("character %q: %w", c.Name, err)
	}
	return true, nil
}

func applyUser(ctx context.Context, store *storage.Store, u User) (bool, error) {
	_, err := store.Users.GetByName(ctx, u.Name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return false, err
	}
	user := &types.User{
		Name:    u.Name,
		Gender:  u.Gender,
		Age:     u.Age,
		Profile: u.Profile,
	}
	if err := store.Users.Create(ctx, user); err != nil {
		return false, fmt.Errorf("user %q: %w", u.Name, err)
	}
	return true, nil
}

func applyConversation(ctx context.Context, store *storage.Store, c Conversation) (bool, error) {
	character, err := store.Characters.GetByName(ctx, c.Character)
	if err != nil {
		return false, fmt.Errorf("conversation %q: %w", c.Title, err)
	}
	userID := 0
	if c.User != "" {
		user, err := store.Users.GetByName(ctx, c.User)
		if err != nil {
			return false, fmt.Errorf("conversation %q: %w", c.Title, err)
		}
		userID = user.ID
	}

	existing, err := store.Conversations.ListForCharacter(ctx, character.ID)
	if err != nil {
		return false, err
	}
	for _, conv := range existing {
		if conv.Title == c.Title && conv.UserID == userID {
			return false, nil
		}
	}

	conversation := &types.Conversation{
		CharacterID:      character.ID,
		UserID:           userID,
		Title:            c.Title,
		RelationshipType: c.RelationshipType,
		UserIntent:       c.UserIntent,
		WorldState:       c.WorldState,
	}
	if err := store.Conversations.Create(ctx, conversation); err != nil {
		return false, fmt.Errorf("conversation %q: %w", c.Title, err)
	}
	return true, nil
}
