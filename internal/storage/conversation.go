package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/eve/internal/types"
)

type conversationModel struct {
	ID               int
	CharacterID      int  `gorm:"index;not null"`
	UserID           *int `gorm:"index"`
	RelationshipType string
	UserIntent       string
	WorldState       string
	Title            string
	MessageCount     int
	IsActive         bool
	LastActivity     time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (conversationModel) TableName() string {
	return "conversations"
}

// ConversationRepo accesses conversations data.
type ConversationRepo struct {
	db *gorm.DB
}

// Create inserts a conversation. The character (and user, when set) must exist.
func (r *ConversationRepo) Create(ctx context.Context, conversation *types.Conversation) error {
	if conversation == nil {
		return fmt.Errorf("conversation cannot be nil")
	}
	db := conn(ctx, r.db)
	var count int64
	if err := db.Model(&characterModel{}).Where("id = ?", conversation.CharacterID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check character: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: character %d does not exist", types.ErrBusinessRule, conversation.CharacterID)
	}

	record := conversationModel{
		CharacterID:      conversation.CharacterID,
		RelationshipType: conversation.RelationshipType,
		UserIntent:       conversation.UserIntent,
		WorldState:       conversation.WorldState,
		Title:            conversation.Title,
		IsActive:         true,
		LastActivity:     time.Now().UTC(),
	}
	if conversation.UserID != 0 {
		userID := conversation.UserID
		record.UserID = &userID
	}
	if err := db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	*conversation = conversationFromModel(record)
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int) (*types.Conversation, error) {
	var model conversationModel
	if err := conn(ctx, r.db).First(&model, id).Error; err != nil {
		return nil, notFound(err, "conversation %d", id)
	}
	result := conversationFromModel(model)
	return &result, nil
}

// GetForCharacter returns the conversation only if it belongs to characterID.
func (r *ConversationRepo) GetForCharacter(ctx context.Context, characterID, id int) (*types.Conversation, error) {
	var model conversationModel
	err := conn(ctx, r.db).
		Where("id = ? AND character_id = ?", id, characterID).
		First(&model).Error
	if err != nil {
		return nil, notFound(err, "conversation %d for character %d", id, characterID)
	}
	result := conversationFromModel(model)
	return &result, nil
}

// ListForCharacter returns the character's conversations, most recently active first.
func (r *ConversationRepo) ListForCharacter(ctx context.Context, characterID int) ([]types.Conversation, error) {
	var records []conversationModel
	err := conn(ctx, r.db).
		Where("character_id = ?", characterID).
		Order("last_activity DESC").
		Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	conversations := make([]types.Conversation, len(records))
	for i, record := range records {
		conversations[i] = conversationFromModel(record)
	}
	return conversations, nil
}

// Touch adds delta to the message count and moves last_activity to at.
func (r *ConversationRepo) Touch(ctx context.Context, id, delta int, at time.Time) error {
	result := conn(ctx, r.db).Model(&conversationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"message_count": gorm.Expr("message_count + ?", delta),
			"last_activity": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to touch conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: conversation %d", types.ErrNotFound, id)
	}
	return nil
}

// Delete removes the conversation together with its messages and memory notes.
func (r *ConversationRepo) Delete(ctx context.Context, id int) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&memoryNoteModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete memory notes: %w", err)
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&messageModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		result := tx.Delete(&conversationModel{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete conversation: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: conversation %d", types.ErrNotFound, id)
		}
		return nil
	})
}

func conversationFromModel(model conversationModel) types.Conversation {
	c := types.Conversation{
		ID:               model.ID,
		CharacterID:      model.CharacterID,
		RelationshipType: model.RelationshipType,
		UserIntent:       model.UserIntent,
		WorldState:       model.WorldState,
		Title:            model.Title,
		MessageCount:     model.MessageCount,
		IsActive:         model.IsActive,
		LastActivity:     model.LastActivity,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
	if model.UserID != nil {
		c.UserID = *model.UserID
	}
	return c
}
