package types

import (
	"time"

	"github.com/easeaico/eve/internal/emotion"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const (
	// MaxMessageRunes bounds message content.
	MaxMessageRunes = 20000
	// MaxMemoryNoteRunes bounds memory note content.
	MaxMemoryNoteRunes = 500
)

// Conversation links one character with one user.
type Conversation struct {
	ID          int `json:"id"`
	CharacterID int `json:"character_id"`
	// UserID is zero for deployments without user profiles.
	UserID           int       `json:"user_id,omitempty"`
	RelationshipType string    `json:"relationship_type"`
	UserIntent       string    `json:"user_intent"`
	WorldState       string    `json:"world_state"`
	Title            string    `json:"title,omitempty"`
	MessageCount     int       `json:"message_count"`
	IsActive         bool      `json:"is_active"`
	LastActivity     time.Time `json:"last_activity"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Message is one stored turn half. Immutable once created.
type Message struct {
	ID                int             `json:"id"`
	ConversationID    int             `json:"conversation_id"`
	Role              string          `json:"role"`
	Content           string          `json:"content"`
	Emotion           emotion.Emotion `json:"emotion,omitempty"`
	EmotionConfidence float64         `json:"emotion_confidence"`
	EmotionIntensity  float64         `json:"emotion_intensity"`
	GenerationTimeMS  *int64          `json:"generation_time_ms,omitempty"`
	TokenCount        *int            `json:"token_count,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// QualifiedEmotion returns the intensity-qualified label, falling back to the
// bare label when the stored intensity is out of range.
func (m Message) QualifiedEmotion() string {
	label, err := emotion.Qualify(string(m.Emotion), m.EmotionIntensity)
	if err != nil {
		if m.Emotion == "" {
			return string(emotion.Neutral)
		}
		return string(m.Emotion)
	}
	return label
}

// MemoryNote is a durable, ranked fact extracted from a turn.
type MemoryNote struct {
	ID              int        `json:"id"`
	ConversationID  int        `json:"conversation_id"`
	CharacterID     int        `json:"character_id"`
	Content         string     `json:"content"`
	ImportanceScore float64    `json:"importance_score"`
	SourceMessageID *int       `json:"source_message_id,omitempty"`
	LastReferenced  *time.Time `json:"last_referenced,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MessagePage is a paginated slice of a conversation's history.
type MessagePage struct {
	Total    int64     `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
	Messages []Message `json:"messages"`
}
