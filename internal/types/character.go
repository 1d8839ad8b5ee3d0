package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/easeaico/eve/internal/emotion"
)

// EmoticonsFrequency describes how often a character uses emoticons.
type EmoticonsFrequency string

const (
	EmoticonsFrequently EmoticonsFrequency = "frequently"
	EmoticonsSometimes  EmoticonsFrequency = "sometimes"
	EmoticonsRarely     EmoticonsFrequency = "rarely"
	EmoticonsNever      EmoticonsFrequency = "never"
)

// MemoryRetention describes how much a character leans on older context.
type MemoryRetention string

const (
	MemoryShortTerm MemoryRetention = "short_term"
	MemoryLongTerm  MemoryRetention = "long_term"
)

const maxCharacterNameLen = 50

// Character is the persisted persona profile.
type Character struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Personality string `json:"personality"`
	Avatar      string `json:"avatar"`

	RoleInWorld  string `json:"role_in_world"`
	WorldContext string `json:"world_context"`

	SpeechPattern             string             `json:"speech_pattern"`
	FavoritePhrases           []string           `json:"favorite_phrases"`
	SentenceLengthPreference  string             `json:"sentence_length_preference"`
	ResponseLengthDefault     string             `json:"response_length_default"`
	AskQuestionsFrequency     float64            `json:"ask_questions_frequency"`
	EmoticonsFrequency        EmoticonsFrequency `json:"emoticons_frequency"`
	MemoryRetentionPreference MemoryRetention    `json:"memory_retention_preference"`

	// EnabledEmotions is the closed vocabulary the character may answer with.
	EnabledEmotions emotion.Set     `json:"enabled_emotions"`
	DefaultEmotion  emotion.Emotion `json:"default_emotion"`

	VoiceID    string   `json:"voice_id,omitempty"`
	SpeechRate *float64 `json:"speech_rate,omitempty"`
	Pitch      *float64 `json:"pitch,omitempty"`

	IsActive          bool       `json:"is_active"`
	IsDefault         bool       `json:"is_default"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewCharacter fills behavioral defaults and validates the result.
func NewCharacter(c Character) (*Character, error) {
	if c.SentenceLengthPreference == "" {
		c.SentenceLengthPreference = "medium"
	}
	if c.ResponseLengthDefault == "" {
		c.ResponseLengthDefault = "1-2 sentences"
	}
	if c.EmoticonsFrequency == "" {
		c.EmoticonsFrequency = EmoticonsRarely
	}
	if c.MemoryRetentionPreference == "" {
		c.MemoryRetentionPreference = MemoryShortTerm
	}
	if c.EnabledEmotions.Len() == 0 {
		c.EnabledEmotions = emotion.DefaultSet()
	}
	if c.DefaultEmotion == "" {
		c.DefaultEmotion = emotion.Neutral
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate enforces the character invariants: a non-empty enabled set that
// contains the default emotion, and behavioral tunables within range.
func (c *Character) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return fmt.Errorf("%w: character name is required", ErrBusinessRule)
	}
	if len([]rune(name)) > maxCharacterNameLen {
		return fmt.Errorf("%w: character name exceeds %d characters", ErrBusinessRule, maxCharacterNameLen)
	}
	if c.EnabledEmotions.Len() == 0 {
		return fmt.Errorf("%w: character %q has no enabled emotions", ErrBusinessRule, c.Name)
	}
	if !emotion.IsValid(string(c.DefaultEmotion)) {
		return fmt.Errorf("%w: default emotion %q is not registered", ErrBusinessRule, c.DefaultEmotion)
	}
	if !c.EnabledEmotions.Contains(c.DefaultEmotion) {
		return fmt.Errorf("%w: default emotion %q is not enabled for character %q", ErrBusinessRule, c.DefaultEmotion, c.Name)
	}
	if c.AskQuestionsFrequency < 0 || c.AskQuestionsFrequency > 1 {
		return fmt.Errorf("%w: ask_questions_frequency must be within [0,1], got %v", ErrBusinessRule, c.AskQuestionsFrequency)
	}
	switch c.EmoticonsFrequency {
	case EmoticonsFrequently, EmoticonsSometimes, EmoticonsRarely, EmoticonsNever:
	default:
		return fmt.Errorf("%w: unknown emoticons frequency %q", ErrBusinessRule, c.EmoticonsFrequency)
	}
	switch c.MemoryRetentionPreference {
	case MemoryShortTerm, MemoryLongTerm:
	default:
		return fmt.Errorf("%w: unknown memory retention preference %q", ErrBusinessRule, c.MemoryRetentionPreference)
	}
	return nil
}

// User is the human side of a conversation.
type User struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Gender    string      `json:"gender,omitempty"`
	Age       *int        `json:"age,omitempty"`
	Profile   UserProfile `json:"profile"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// UserProfile is the free-form profile summarized into prompts.
type UserProfile struct {
	Likes       []string `json:"likes" yaml:"likes"`
	Dislikes    []string `json:"dislikes" yaml:"dislikes"`
	Personality []string `json:"personality" yaml:"personality"`
}
