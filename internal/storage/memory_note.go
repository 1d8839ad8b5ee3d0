package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/easeaico/eve/internal/types"
)

type memoryNoteModel struct {
	ID              int
	CharacterID     int    `gorm:"index;not null"`
	ConversationID  int    `gorm:"index;not null"`
	Content         string `gorm:"size:500;not null"`
	SourceMessageID *int
	ImportanceScore float64 `gorm:"index"`
	CreatedAt       time.Time
	LastReferenced  *time.Time
}

func (memoryNoteModel) TableName() string {
	return "memory_notes"
}

// MemoryNoteRepo accesses memory notes data.
type MemoryNoteRepo struct {
	db *gorm.DB
}

// Append inserts a memory note and assigns its ID.
func (r *MemoryNoteRepo) Append(ctx context.Context, note *types.MemoryNote) error {
	if note == nil {
		return fmt.Errorf("memory note cannot be nil")
	}
	if strings.TrimSpace(note.Content) == "" {
		return fmt.Errorf("%w: memory note content is required", types.ErrBusinessRule)
	}
	if utf8.RuneCountInString(note.Content) > types.MaxMemoryNoteRunes {
		return fmt.Errorf("%w: memory note exceeds %d characters", types.ErrBusinessRule, types.MaxMemoryNoteRunes)
	}
	if note.ImportanceScore < 0 || note.ImportanceScore > 1 {
		return fmt.Errorf("%w: importance score must be within [0,1], got %v", types.ErrBusinessRule, note.ImportanceScore)
	}

	record := memoryNoteModel{
		CharacterID:     note.CharacterID,
		ConversationID:  note.ConversationID,
		Content:         note.Content,
		SourceMessageID: note.SourceMessageID,
		ImportanceScore: note.ImportanceScore,
		CreatedAt:       note.CreatedAt,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if err := conn(ctx, r.db).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert memory note: %w", err)
	}
	note.ID = record.ID
	note.CreatedAt = record.CreatedAt
	return nil
}

// Top returns up to limit notes of the conversation by descending importance.
func (r *MemoryNoteRepo) Top(ctx context.Context, conversationID, limit int) ([]types.MemoryNote, error) {
	if limit <= 0 {
		return nil, nil
	}
	var records []memoryNoteModel
	err := conn(ctx, r.db).
		Where("conversation_id = ?", conversationID).
		Order("importance_score DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query memory notes: %w", err)
	}
	results := make([]types.MemoryNote, 0, len(records))
	for _, record := range records {
		results = append(results, memoryNoteFromModel(record))
	}
	return results, nil
}

// ListByConversation returns all notes of the conversation, oldest first.
func (r *MemoryNoteRepo) ListByConversation(ctx context.Context, conversationID int) ([]types.MemoryNote, error) {
	var records []memoryNoteModel
	err := conn(ctx, r.db).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list memory notes: %w", err)
	}
	results := make([]types.MemoryNote, 0, len(records))
	for _, record := range records {
		results = append(results, memoryNoteFromModel(record))
	}
	return results, nil
}

// MarkReferenced stamps last_referenced on the given notes.
func (r *MemoryNoteRepo) MarkReferenced(ctx context.Context, ids []int, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := conn(ctx, r.db).
		Model(&memoryNoteModel{}).
		Where("id IN ?", ids).
		Update("last_referenced", at).Error; err != nil {
		return fmt.Errorf("failed to mark memory notes referenced: %w", err)
	}
	return nil
}

func memoryNoteFromModel(model memoryNoteModel) types.MemoryNote {
	return types.MemoryNote{
		ID:              model.ID,
		ConversationID:  model.ConversationID,
		CharacterID:     model.CharacterID,
		Content:         model.Content,
		ImportanceScore: model.ImportanceScore,
		SourceMessageID: model.SourceMessageID,
		LastReferenced:  model.LastReferenced,
		CreatedAt:       model.CreatedAt,
	}
}
