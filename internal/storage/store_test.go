package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/easeaico/eve/internal/emotion"
	"github.com/easeaico/eve/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := NewStore(ctx, ":memory:")
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.AutoMigrate(ctx); err != nil {
		t.Fatalf("AutoMigrate error: %v", err)
	}
	return store
}

func seedConversation(t *testing.T, store *Store) (*types.Character, *types.Conversation) {
	t.Helper()
	ctx := context.Background()
	character, err := types.NewCharacter(types.Character{
		Name:            "Mira",
		Personality:     "warm, teasing",
		FavoritePhrases: []string{"honestly"},
		EnabledEmotions: emotion.MustSet("neutral", "joyful", "playful"),
		IsActive:        true,
	})
	if err != nil {
		t.Fatalf("NewCharacter error: %v", err)
	}
	if err := store.Characters.Create(ctx, character); err != nil {
		t.Fatalf("Create character error: %v", err)
	}
	conversation := &types.Conversation{CharacterID: character.ID, RelationshipType: "friends"}
	if err := store.Conversations.Create(ctx, conversation); err != nil {
		t.Fatalf("Create conversation error: %v", err)
	}
	return character, conversation
}

func TestCharacterRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	character, _ := seedConversation(t, store)

	got, err := store.Characters.GetByID(ctx, character.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Name != "Mira" || got.DefaultEmotion != emotion.Neutral {
		t.Fatalf("unexpected character: %+v", got)
	}
	if got.EnabledEmotions.Len() != 3 || !got.EnabledEmotions.Contains(emotion.Playful) {
		t.Fatalf("enabled emotions not restored: %v", got.EnabledEmotions.Strings())
	}
	if len(got.FavoritePhrases) != 1 || got.FavoritePhrases[0] != "honestly" {
		t.Fatalf("favorite phrases not restored: %v", got.FavoritePhrases)
	}

	def, err := store.Characters.GetDefault(ctx)
	if err != nil || def.ID != character.ID {
		t.Fatalf("GetDefault = %v, %v", def, err)
	}

	dup, _ := types.NewCharacter(types.Character{Name: "Mira"})
	if err := store.Characters.Create(ctx, dup); !errors.Is(err, types.ErrBusinessRule) {
		t.Fatalf("expected duplicate name to be rejected, got %v", err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Characters.GetByID(ctx, 42); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Conversations.GetByID(ctx, 42); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Conversations.Touch(ctx, 42, 2, time.Now()); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoredCharacterIsRevalidated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	character, _ := seedConversation(t, store)

	err := store.db.Model(&characterModel{}).
		Where("id = ?", character.ID).
		Update("default_emotion", string(emotion.Angry)).Error
	if err != nil {
		t.Fatalf("corrupt default emotion: %v", err)
	}

	_, err = store.Characters.GetByID(ctx, character.ID)
	if !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if errors.Is(err, types.ErrBusinessRule) {
		t.Fatalf("stored corruption must not surface as a business rule error: %v", err)
	}
	if _, err := store.Characters.List(ctx); !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState from List, got %v", err)
	}
}

func TestConversationRequiresCharacter(t *testing.T) {
	store := newTestStore(t)
	err := store.Conversations.Create(context.Background(), &types.Conversation{CharacterID: 7})
	if !errors.Is(err, types.ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule, got %v", err)
	}
}

func TestRecentMessagesNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, conversation := seedConversation(t, store)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		msg := &types.Message{
			ConversationID: conversation.ID,
			Role:           types.RoleUser,
			Content:        fmt.Sprintf("m%d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Messages.Append(ctx, msg); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	recent, err := store.Messages.Recent(ctx, conversation.ID, 3)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	want := []string{"m4", "m3", "m2"}
	if len(recent) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(recent))
	}
	for i, msg := range recent {
		if msg.Content != want[i] {
			t.Fatalf("recent[%d] = %q, want %q", i, msg.Content, want[i])
		}
	}

	page, err := store.Messages.Page(ctx, conversation.ID, 2, 1, false)
	if err != nil {
		t.Fatalf("Page error: %v", err)
	}
	if page.Total != 5 || len(page.Messages) != 2 || page.Messages[0].Content != "m1" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestMessageValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, conversation := seedConversation(t, store)

	err := store.Messages.Append(ctx, &types.Message{ConversationID: conversation.ID, Role: "narrator", Content: "x"})
	if !errors.Is(err, types.ErrBusinessRule) {
		t.Fatalf("expected role rejection, got %v", err)
	}

	msg := &types.Message{
		ConversationID:   conversation.ID,
		Role:             types.RoleAssistant,
		Content:          "hi",
		Emotion:          emotion.Joyful,
		EmotionIntensity: 0.7,
	}
	if err := store.Messages.Append(ctx, msg); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	recent, _ := store.Messages.Recent(ctx, conversation.ID, 1)
	if recent[0].QualifiedEmotion() != "very_joyful" {
		t.Fatalf("unexpected emotion: %q", recent[0].QualifiedEmotion())
	}
}

func TestTopMemoryNotesByImportance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	character, conversation := seedConversation(t, store)

	for i, score := range []float64{0.86, 0.99, 0.9, 0.95} {
		note := &types.MemoryNote{
			CharacterID:     character.ID,
			ConversationID:  conversation.ID,
			Content:         fmt.Sprintf("note %d", i),
			ImportanceScore: score,
		}
		if err := store.MemoryNotes.Append(ctx, note); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	top, err := store.MemoryNotes.Top(ctx, conversation.ID, 2)
	if err != nil {
		t.Fatalf("Top error: %v", err)
	}
	if len(top) != 2 || top[0].ImportanceScore != 0.99 || top[1].ImportanceScore != 0.95 {
		t.Fatalf("unexpected ranking: %+v", top)
	}

	at := time.Now().UTC()
	if err := store.MemoryNotes.MarkReferenced(ctx, []int{top[0].ID}, at); err != nil {
		t.Fatalf("MarkReferenced error: %v", err)
	}
	notes, _ := store.MemoryNotes.ListByConversation(ctx, conversation.ID)
	for _, note := range notes {
		if (note.ID == top[0].ID) != (note.LastReferenced != nil) {
			t.Fatalf("last_referenced mismatch for note %d", note.ID)
		}
	}

	tooLong := &types.MemoryNote{ConversationID: conversation.ID, Content: strings.Repeat("a", 501), ImportanceScore: 0.9}
	if err := store.MemoryNotes.Append(ctx, tooLong); !errors.Is(err, types.ErrBusinessRule) {
		t.Fatalf("expected length rejection, got %v", err)
	}
}

func TestTransactionRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, conversation := seedConversation(t, store)

	boom := errors.New("boom")
	err := store.InTransaction(ctx, func(ctx context.Context) error {
		msg := &types.Message{ConversationID: conversation.ID, Role: types.RoleUser, Content: "lost"}
		if err := store.Messages.Append(ctx, msg); err != nil {
			return err
		}
		if err := store.Conversations.Touch(ctx, conversation.ID, 1, time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	page, _ := store.Messages.Page(ctx, conversation.ID, 10, 0, false)
	if page.Total != 0 {
		t.Fatalf("expected rollback, found %d messages", page.Total)
	}
	got, _ := store.Conversations.GetByID(ctx, conversation.ID)
	if got.MessageCount != 0 {
		t.Fatalf("expected message_count 0, got %d", got.MessageCount)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	character, conversation := seedConversation(t, store)

	_ = store.Messages.Append(ctx, &types.Message{ConversationID: conversation.ID, Role: types.RoleUser, Content: "hello"})
	_ = store.MemoryNotes.Append(ctx, &types.MemoryNote{CharacterID: character.ID, ConversationID: conversation.ID, Content: "likes tea", ImportanceScore: 0.9})

	if err := store.Conversations.Delete(ctx, conversation.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.Conversations.GetByID(ctx, conversation.ID); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected conversation gone, got %v", err)
	}
	notes, _ := store.MemoryNotes.ListByConversation(ctx, conversation.ID)
	page, _ := store.Messages.Page(ctx, conversation.ID, 10, 0, false)
	if len(notes) != 0 || page.Total != 0 {
		t.Fatalf("expected cascade, got %d notes %d messages", len(notes), page.Total)
	}
	if err := store.Conversations.Delete(ctx, conversation.ID); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRuntimeConfigDefaultsAndSave(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg, err := store.RuntimeConfig.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Mode != types.ModeLocal || cfg.ModelName != "gemma3:latest" || cfg.ConversationMemoryLength != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	cfg.Temperature = 1.2
	if err := store.RuntimeConfig.Save(ctx, cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	reloaded, _ := store.RuntimeConfig.Load(ctx)
	if reloaded.Temperature != 1.2 {
		t.Fatalf("expected temperature 1.2, got %v", reloaded.Temperature)
	}

	cfg.MaxTokens = 0
	if err := store.RuntimeConfig.Save(ctx, cfg); !errors.Is(err, types.ErrBusinessRule) {
		t.Fatalf("expected bounds rejection, got %v", err)
	}
}

func TestListConversationsForCharacter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	character, first := seedConversation(t, store)

	second := &types.Conversation{CharacterID: character.ID, Title: "later"}
	if err := store.Conversations.Create(ctx, second); err != nil {
		t.Fatalf("Create conversation error: %v", err)
	}
	if err := store.Conversations.Touch(ctx, first.ID, 2, time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("Touch error: %v", err)
	}

	got, err := store.Conversations.ListForCharacter(ctx, character.ID)
	if err != nil {
		t.Fatalf("ListForCharacter error: %v", err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[0].MessageCount != 2 {
		t.Fatalf("unexpected order: %+v", got)
	}

	none, err := store.Conversations.ListForCharacter(ctx, character.ID+100)
	if err != nil {
		t.Fatalf("ListForCharacter error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no conversations, got %d", len(none))
	}
}
