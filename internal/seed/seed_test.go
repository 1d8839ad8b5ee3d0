package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/easeaico/eve/internal/config"
	"github.com/easeaico/eve/internal/emotion"
	"github.com/easeaico/eve/internal/storage"
	"github.com/easeaico/eve/internal/types"
)

const sampleSeed = `
runtime_config:
  mode: remote
  model_name: gpt-4o-mini
  conversation_memory_length: 6
characters:
  - name: Mira
    personality: warm, teasing
    favorite_phrases: ["honestly", "no way"]
    ask_questions_frequency: 0.3
    emoticons_frequency: sometimes
    enabled_emotions: [neutral, joyful, playful]
    default_emotion: neutral
    is_default: true
  - name: Ren
    enabled_emotions: [neutral, tired]
users:
  - name: alex
    age: 29
    profile:
      likes: [hiking]
      dislikes: [mornings]
conversations:
  - character: Mira
    user: alex
    title: first date
    relationship_type: dating
  - character: Ren
    title: solo
`

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	ctx := context.Background()
	store, err := storage.NewStore(ctx, ":memory:")
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.AutoMigrate(ctx); err != nil {
		t.Fatalf("AutoMigrate error: %v", err)
	}
	return store
}

func TestApplySeed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	runtime := config.NewRuntimeService(store.RuntimeConfig)

	f, err := Parse([]byte(sampleSeed))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	summary, err := Apply(ctx, store, runtime, f)
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if summary.CharactersCreated != 2 || summary.UsersCreated != 1 || summary.ConversationsCreated != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !summary.RuntimeConfigUpdated {
		t.Fatalf("runtime config not updated")
	}

	mira, err := store.Characters.GetByName(ctx, "Mira")
	if err != nil {
		t.Fatalf("GetByName error: %v", err)
	}
	if !mira.IsDefault || !mira.IsActive || mira.EmoticonsFrequency != types.EmoticonsSometimes {
		t.Fatalf("unexpected character: %+v", mira)
	}
	if !mira.EnabledEmotions.Contains(emotion.Playful) || mira.EnabledEmotions.Len() != 3 {
		t.Fatalf("unexpected enabled emotions: %v", mira.EnabledEmotions.Strings())
	}

	ren, err := store.Characters.GetByName(ctx, "Ren")
	if err != nil {
		t.Fatalf("GetByName error: %v", err)
	}
	if ren.DefaultEmotion != emotion.Neutral || ren.MemoryRetentionPreference != types.MemoryShortTerm {
		t.Fatalf("defaults not filled: %+v", ren)
	}

	alex, err := store.Users.GetByName(ctx, "alex")
	if err != nil {
		t.Fatalf("GetByName user error: %v", err)
	}
	if alex.Age == nil || *alex.Age != 29 || len(alex.Profile.Likes) != 1 {
		t.Fatalf("unexpected user: %+v", alex)
	}

	conversations, err := store.Conversations.ListForCharacter(ctx, mira.ID)
	if err != nil {
		t.Fatalf("ListForCharacter error: %v", err)
	}
	if len(conversations) != 1 || conversations[0].UserID != alex.ID || conversations[0].RelationshipType != "dating" {
		t.Fatalf("unexpected conversations: %+v", conversations)
	}

	cfg, err := store.RuntimeConfig.Load(ctx)
	if err != nil {
		t.Fatalf("Load runtime config error: %v", err)
	}
	if cfg.Mode != types.ModeRemote || cfg.ModelName != "gpt-4o-mini" || cfg.ConversationMemoryLength != 6 {
		t.Fatalf("unexpected runtime config: %+v", cfg)
	}
	if cfg.Temperature != types.DefaultRuntimeConfig().Temperature {
		t.Fatalf("omitted key changed: temperature=%v", cfg.Temperature)
	}
}

func TestApplySeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	f, err := Parse([]byte(sampleSeed))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if _, err := Apply(ctx, store, nil, f); err != nil {
		t.Fatalf("first Apply error: %v", err)
	}
	summary, err := Apply(ctx, store, nil, f)
	if err != nil {
		t.Fatalf("second Apply error: %v", err)
	}
	if summary.CharactersCreated != 0 || summary.UsersCreated != 0 || summary.ConversationsCreated != 0 {
		t.Fatalf("second apply created records: %+v", summary)
	}
	if summary.CharactersSkipped != 2 || summary.ConversationsSkipped != 2 {
		t.Fatalf("unexpected skip counts: %+v", summary)
	}
}

func TestApplySeedRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	f, err := Parse([]byte(`
characters:
  - name: Mira
    enabled_emotions: [neutral]
conversations:
  - character: Nobody
    title: orphan
`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if _, err := Apply(ctx, store, nil, f); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Characters.GetByName(ctx, "Mira"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("character should have been rolled back, got %v", err)
	}
}

func TestParseRejectsUnknownEmotion(t *testing.T) {
	_, err := Parse([]byte(`
characters:
  - name: Mira
    enabled_emotions: [neutral, ecstatic]
`))
	if err == nil {
		t.Fatalf("expected error for unknown emotion")
	}
}

func TestApplySeedRejectsDefaultOutsideEnabledSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	f, err := Parse([]byte(`
characters:
  - name: Mira
    enabled_emotions: [joyful]
    default_emotion: angry
`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if _, err := Apply(ctx, store, nil, f); !errors.Is(err, types.ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(sampleSeed), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if len(f.Characters) != 2 || f.RuntimeConfig == nil || *f.RuntimeConfig.ModelName != "gpt-4o-mini" {
		t.Fatalf("unexpected file: %+v", f)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
