package storage

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/easeaico/eve/internal/emotion"
	"github.com/easeaico/eve/internal/types"
)

type messageModel struct {
	ID                int
	ConversationID    int     `gorm:"index:idx_messages_conversation_created,priority:1;not null"`
	Role              string  `gorm:"size:20;not null"`
	Content           string  `gorm:"not null"`
	Language          string  `gorm:"size:10;default:en"`
	Emotion           *string `gorm:"size:30;index"`
	EmotionConfidence float64
	EmotionIntensity  float64
	GenerationTimeMS  *int64 `gorm:"column:generation_time_ms"`
	TokenCount        *int
	CreatedAt         time.Time `gorm:"index:idx_messages_conversation_created,priority:2"`
}

func (messageModel) TableName() string {
	return "messages"
}

// MessageRepo accesses messages data.
type MessageRepo struct {
	db *gorm.DB
}

// Append inserts an immutable message and assigns its ID and timestamp.
func (r *MessageRepo) Append(ctx context.Context, message *types.Message) error {
	if message == nil {
		return fmt.Errorf("message cannot be nil")
	}
	switch message.Role {
	case types.RoleUser, types.RoleAssistant, types.RoleSystem:
	default:
		return fmt.Errorf("%w: unknown message role %q", types.ErrBusinessRule, message.Role)
	}
	if utf8.RuneCountInString(message.Content) > types.MaxMessageRunes {
		return fmt.Errorf("%w: message exceeds %d characters", types.ErrBusinessRule, types.MaxMessageRunes)
	}

	record := messageModel{
		ConversationID:    message.ConversationID,
		Role:              message.Role,
		Content:           message.Content,
		EmotionConfidence: message.EmotionConfidence,
		EmotionIntensity:  message.EmotionIntensity,
		GenerationTimeMS:  message.GenerationTimeMS,
		TokenCount:        message.TokenCount,
		CreatedAt:         message.CreatedAt,
	}
	if message.Emotion != "" {
		label := string(message.Emotion)
		record.Emotion = &label
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if err := conn(ctx, r.db).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	message.ID = record.ID
	message.CreatedAt = record.CreatedAt
	return nil
}

// Recent returns up to limit messages of the conversation, newest first.
func (r *MessageRepo) Recent(ctx context.Context, conversationID, limit int) ([]types.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	var records []messageModel
	err := conn(ctx, r.db).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	return messagesFromModels(records), nil
}

// Page returns one page of the conversation's history with the total count.
func (r *MessageRepo) Page(ctx context.Context, conversationID, limit, offset int, desc bool) (types.MessagePage, error) {
	db := conn(ctx, r.db)
	var total int64
	if err := db.Model(&messageModel{}).Where("conversation_id = ?", conversationID).Count(&total).Error; err != nil {
		return types.MessagePage{}, fmt.Errorf("failed to count messages: %w", err)
	}

	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	var records []messageModel
	err := db.
		Where("conversation_id = ?", conversationID).
		Order("created_at " + direction).
		Order("id " + direction).
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return types.MessagePage{}, fmt.Errorf("failed to query messages: %w", err)
	}
	return types.MessagePage{
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		Messages: messagesFromModels(records),
	}, nil
}

func messagesFromModels(records []messageModel) []types.Message {
	results := make([]types.Message, 0, len(records))
	for _, record := range records {
		results = append(results, messageFromModel(record))
	}
	return results
}

func messageFromModel(model messageModel) types.Message {
	m := types.Message{
		ID:                model.ID,
		ConversationID:    model.ConversationID,
		Role:              model.Role,
		Content:           model.Content,
		EmotionConfidence: model.EmotionConfidence,
		EmotionIntensity:  model.EmotionIntensity,
		GenerationTimeMS:  model.GenerationTimeMS,
		TokenCount:        model.TokenCount,
		CreatedAt:         model.CreatedAt,
	}
	if model.Emotion != nil {
		m.Emotion = emotion.Emotion(*model.Emotion)
	}
	return m
}
