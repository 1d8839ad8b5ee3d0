// Package prompt assembles the system instruction and history window sent to
// the language model for one turn.
package prompt

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/easeaico/eve/internal/emotion"
	"github.com/easeaico/eve/internal/types"
	"github.com/easeaico/eve/internal/utils"
)

// summaryRunes bounds each recent-message line in the prompt.
const summaryRunes = 100

// MessageSource returns a conversation's most recent messages, newest first.
type MessageSource interface {
	Recent(ctx context.Context, conversationID, limit int) ([]types.Message, error)
}

// MemoryNoteSource returns a conversation's notes by descending importance.
type MemoryNoteSource interface {
	Top(ctx context.Context, conversationID, limit int) ([]types.MemoryNote, error)
}

// Input contains all inputs for prompt assembly. User may be nil.
type Input struct {
	Conversation *types.Conversation
	Character    *types.Character
	User         *types.User
	Window       int
}

// Context is the assembled prompt material for a turn.
type Context struct {
	SystemPrompt string
	// History is oldest first.
	History []types.Message
	// MemoryNotes are in presentation order, the reverse of selection.
	MemoryNotes []types.MemoryNote
}

// Assembler builds turn contexts from storage.
type Assembler struct {
	messages MessageSource
	notes    MemoryNoteSource
}

// NewAssembler creates an Assembler.
func NewAssembler(messages MessageSource, notes MemoryNoteSource) *Assembler {
	return &Assembler{messages: messages, notes: notes}
}

// NoteLimit is the number of memory notes fetched for a window of n messages.
func NoteLimit(window int) int {
	return max(1, int(math.Ceil(float64(window)/2)))
}

// Assemble fetches the history window and memory notes and renders the
// system prompt.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Context, error) {
	if in.Conversation == nil {
		return nil, fmt.Errorf("conversation is required")
	}
	if in.Character == nil {
		return nil, fmt.Errorf("character is required")
	}
	if in.Window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", in.Window)
	}

	history, err := a.messages.Recent(ctx, in.Conversation.ID, in.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	reverse(history)

	notes, err := a.notes.Top(ctx, in.Conversation.ID, NoteLimit(in.Window))
	if err != nil {
		return nil, fmt.Errorf("failed to load memory notes: %w", err)
	}
	reverse(notes)

	text, err := Render(in.Conversation, in.Character, in.User, history, notes)
	if err != nil {
		return nil, err
	}
	return &Context{
		SystemPrompt: text,
		History:      history,
		MemoryNotes:  notes,
	}, nil
}

type userView struct {
	Name        string
	Gender      string
	Likes       string
	Dislikes    string
	Personality string
}

type promptView struct {
	Name            string
	Description     string
	Personality     string
	SpeechPattern   string
	FavoritePhrases string
	RoleInWorld     string
	WorldContext    string
	User            *userView

	SentenceLength  string
	ResponseLength  string
	Emoticons       string
	QuestionPercent int
	Retention       string

	EnabledEmotions string
	AllEmotions     string

	Relationship string
	Intent       string
	Recent       []string
	Notes        []string
	WorldState   string
}

// Render produces the system prompt from already-ordered history and notes.
func Render(conversation *types.Conversation, character *types.Character, user *types.User, history []types.Message, notes []types.MemoryNote) (string, error) {
	userName := "user"
	if user != nil && user.Name != "" {
		userName = user.Name
	}
	normalize := func(text string) string {
		return strings.TrimSpace(utils.NormalizePromptText(text, character.Name, userName))
	}

	view := promptView{
		Name:            character.Name,
		Description:     normalize(character.Description),
		Personality:     normalize(character.Personality),
		SpeechPattern:   normalize(character.SpeechPattern),
		FavoritePhrases: quoteList(character.FavoritePhrases),
		RoleInWorld:     normalize(character.RoleInWorld),
		WorldContext:    normalize(character.WorldContext),
		SentenceLength:  character.SentenceLengthPreference,
		ResponseLength:  character.ResponseLengthDefault,
		Emoticons:       emoticonDirective(character.EmoticonsFrequency),
		QuestionPercent: int(math.Round(character.AskQuestionsFrequency * 100)),
		Retention:       retentionDirective(character.MemoryRetentionPreference),
		EnabledEmotions: quoteList(character.EnabledEmotions.Strings()),
		AllEmotions:     quoteList(emotionLabels(emotion.All())),
		Relationship:    conversation.RelationshipType,
		Intent:          conversation.UserIntent,
		WorldState:      normalize(conversation.WorldState),
	}
	if user != nil {
		view.User = &userView{
			Name:        user.Name,
			Gender:      user.Gender,
			Likes:       strings.Join(user.Profile.Likes, ", "),
			Dislikes:    strings.Join(user.Profile.Dislikes, ", "),
			Personality: strings.Join(user.Profile.Personality, ", "),
		}
	}
	for _, msg := range history {
		view.Recent = append(view.Recent, fmt.Sprintf("- %s: %s (emotion: %s)", msg.Role, truncate(msg.Content, summaryRunes), msg.QualifiedEmotion()))
	}
	for _, note := range notes {
		view.Notes = append(view.Notes, fmt.Sprintf("- %s (importance: %.2f)", note.Content, note.ImportanceScore))
	}

	var buf bytes.Buffer
	if err := systemPromptTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return buf.String(), nil
}

func emoticonDirective(freq types.EmoticonsFrequency) string {
	switch freq {
	case types.EmoticonsFrequently:
		return "Use emoticons frequently"
	case types.EmoticonsSometimes:
		return "Use emoticons sometimes"
	case types.EmoticonsNever:
		return "Never use emoticons"
	default:
		return "Use emoticons rarely"
	}
}

func retentionDirective(pref types.MemoryRetention) string {
	if pref == types.MemoryLongTerm {
		return "Memory retention: long term, weave older shared details back into the conversation"
	}
	return "Memory retention: short term, focus on the latest exchanges"
}

func truncate(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}

func quoteList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			quoted = append(quoted, fmt.Sprintf("%q", item))
		}
	}
	return strings.Join(quoted, ", ")
}

func emotionLabels(emotions []emotion.Emotion) []string {
	out := make([]string, len(emotions))
	for i, e := range emotions {
		out[i] = string(e)
	}
	return out
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
