package prompt

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/easeaico/eve/internal/emotion"
	"github.com/easeaico/eve/internal/types"
)

type fakeHistory struct {
	messages []types.Message
	notes    []types.MemoryNote

	messageLimit int
	noteLimit    int
}

func (f *fakeHistory) Recent(_ context.Context, _ int, limit int) ([]types.Message, error) {
	f.messageLimit = limit
	sorted := append([]types.Message(nil), f.messages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (f *fakeHistory) Top(_ context.Context, _ int, limit int) ([]types.MemoryNote, error) {
	f.noteLimit = limit
	sorted := append([]types.MemoryNote(nil), f.notes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ImportanceScore > sorted[j].ImportanceScore })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func testCharacter(t *testing.T) *types.Character {
	t.Helper()
	c, err := types.NewCharacter(types.Character{
		Name:                  "Mira",
		Description:           "a barista who knows {{user}} well",
		Personality:           "warm",
		FavoritePhrases:       []string{"no way", "honestly"},
		AskQuestionsFrequency: 0.3,
		EmoticonsFrequency:    types.EmoticonsNever,
		EnabledEmotions:       emotion.MustSet("neutral", "joyful", "playful"),
	})
	if err != nil {
		t.Fatalf("NewCharacter error: %v", err)
	}
	return c
}

func TestAssembleWindowOrdering(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeHistory{}
	for i := 0; i < 15; i++ {
		src.messages = append(src.messages, types.Message{
			ID:        i + 1,
			Role:      types.RoleUser,
			Content:   fmt.Sprintf("message %02d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	for i, score := range []float64{0.86, 0.97, 0.9, 0.99, 0.88, 0.93, 0.95} {
		src.notes = append(src.notes, types.MemoryNote{ID: i + 1, Content: fmt.Sprintf("note %d", i), ImportanceScore: score})
	}

	assembler := NewAssembler(src, src)
	got, err := assembler.Assemble(context.Background(), Input{
		Conversation: &types.Conversation{ID: 1},
		Character:    testCharacter(t),
		Window:       10,
	})
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}

	if len(got.History) != 10 {
		t.Fatalf("expected 10 history messages, got %d", len(got.History))
	}
	for i, msg := range got.History {
		want := fmt.Sprintf("message %02d", i+5)
		if msg.Content != want {
			t.Fatalf("history[%d] = %q, want %q", i, msg.Content, want)
		}
	}

	if src.noteLimit != 5 {
		t.Fatalf("expected note limit 5, got %d", src.noteLimit)
	}
	wantScores := []float64{0.9, 0.93, 0.95, 0.97, 0.99}
	if len(got.MemoryNotes) != len(wantScores) {
		t.Fatalf("expected %d notes, got %d", len(wantScores), len(got.MemoryNotes))
	}
	for i, note := range got.MemoryNotes {
		if note.ImportanceScore != wantScores[i] {
			t.Fatalf("notes[%d] importance = %v, want %v", i, note.ImportanceScore, wantScores[i])
		}
	}

	first := strings.Index(got.SystemPrompt, "message 05")
	last := strings.Index(got.SystemPrompt, "message 14")
	if first < 0 || last < 0 || first > last {
		t.Fatalf("recent events not rendered oldest first:\n%s", got.SystemPrompt)
	}
	if strings.Contains(got.SystemPrompt, "message 04") {
		t.Fatalf("message outside the window leaked into the prompt")
	}
}

func TestNoteLimit(t *testing.T) {
	cases := map[int]int{1: 1, 2: 1, 3: 2, 10: 5, 11: 6}
	for window, want := range cases {
		if got := NoteLimit(window); got != want {
			t.Fatalf("NoteLimit(%d) = %d, want %d", window, got, want)
		}
	}
}

func TestRenderPlaceholders(t *testing.T) {
	text, err := Render(&types.Conversation{}, testCharacter(t), nil, nil, nil)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	for _, want := range []string{"No recent history", "No memory notes", "World state: Default state"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in prompt:\n%s", want, text)
		}
	}
	if strings.Contains(text, "USER PROFILE") {
		t.Fatalf("user profile rendered without a user")
	}
}

func TestRenderCharacterAndUser(t *testing.T) {
	user := &types.User{Name: "Sam", Profile: types.UserProfile{Likes: []string{"jazz", "tea"}}}
	history := []types.Message{{
		Role:             types.RoleAssistant,
		Content:          strings.Repeat("a", 150),
		Emotion:          emotion.Joyful,
		EmotionIntensity: 0.9,
	}}
	notes := []types.MemoryNote{{Content: "Sam is allergic to cats", ImportanceScore: 0.91}}

	text, err := Render(&types.Conversation{WorldState: "rainy evening"}, testCharacter(t), user, history, notes)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	for _, want := range []string{
		"You are Mira, a barista who knows Sam well.",
		`Choose EXACTLY ONE emotion for yourself from: "neutral", "joyful", "playful"`,
		`Favorite phrases: "no way", "honestly"`,
		"User likes: jazz, tea",
		"Never use emoticons",
		"in about 30% of responses",
		"- assistant: " + strings.Repeat("a", 100) + "... (emotion: extremely_joyful)",
		"- Sam is allergic to cats (importance: 0.91)",
		"World state: rainy evening",
		`"memory_note_importance"`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in prompt:\n%s", want, text)
		}
	}
}
