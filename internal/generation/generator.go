// Package generation runs one conversational turn: context assembly, the
// model call, reply parsing, emotion validation, memory gating and the
// transactional write of the results.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/easeaico/eve/internal/emotion"
	"github.com/easeaico/eve/internal/memory"
	"github.com/easeaico/eve/internal/models"
	"github.com/easeaico/eve/internal/prompt"
	"github.com/easeaico/eve/internal/types"
	"github.com/easeaico/eve/internal/utils"
)

// ConversationStore reads and updates conversations.
type ConversationStore interface {
	GetByID(ctx context.Context, id int) (*types.Conversation, error)
	Touch(ctx context.Context, id, delta int, at time.Time) error
}

// CharacterStore reads characters and records interaction times.
type CharacterStore interface {
	GetByID(ctx context.Context, id int) (*types.Character, error)
	Touch(ctx context.Context, id int, at time.Time) error
}

// UserStore reads users.
type UserStore interface {
	GetByID(ctx context.Context, id int) (*types.User, error)
}

// MessageStore reads the history window and appends messages.
type MessageStore interface {
	prompt.MessageSource
	Append(ctx context.Context, message *types.Message) error
}

// MemoryNoteStore ranks, appends and stamps memory notes.
type MemoryNoteStore interface {
	prompt.MemoryNoteSource
	Append(ctx context.Context, note *types.MemoryNote) error
	MarkReferenced(ctx context.Context, ids []int, at time.Time) error
}

// Transactor runs fn in one transaction; store calls made with the ctx
// passed to fn join it.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ConfigSource supplies the runtime configuration snapshot.
type ConfigSource interface {
	Current(ctx context.Context) (types.RuntimeConfig, error)
}

// ModelSource resolves the language model for a configuration snapshot.
type ModelSource interface {
	Completer(ctx context.Context, cfg types.RuntimeConfig) (models.Completer, error)
}

// Deps are the collaborators of a Generator.
type Deps struct {
	Conversations ConversationStore
	Characters    CharacterStore
	Users         UserStore
	Messages      MessageStore
	MemoryNotes   MemoryNoteStore
	Tx            Transactor
	Config        ConfigSource
	Models        ModelSource
}

// Options tune a Generator.
type Options struct {
	// ModelTimeout bounds the model call. Zero means no limit beyond ctx.
	ModelTimeout time.Duration
	// Gate decides which suggested memory notes are kept. Defaults to the
	// standard significance bar.
	Gate *memory.Gate
}

// Result is the outcome of a completed turn.
type Result struct {
	TurnID         string
	Message        types.Message
	GenerationTime time.Duration
	// MemoryNote is set when the turn produced a kept note.
	MemoryNote *types.MemoryNote
}

// Generator runs turns. It is safe for concurrent use; turns on the same
// conversation are serialised.
type Generator struct {
	deps      Deps
	assembler *prompt.Assembler
	gate      *memory.Gate
	timeout   time.Duration
	locks     *conversationLocks
	nowFunc   func() time.Time
}

// New creates a Generator.
func New(deps Deps, opts Options) (*Generator, error) {
	if deps.Conversations == nil || deps.Characters == nil || deps.Messages == nil ||
		deps.MemoryNotes == nil || deps.Tx == nil || deps.Config == nil || deps.Models == nil {
		return nil, fmt.Errorf("generator dependencies are incomplete")
	}
	gate := opts.Gate
	if gate == nil {
		gate = memory.NewGate(memory.DefaultSignificanceBar)
	}
	return &Generator{
		deps:      deps,
		assembler: prompt.NewAssembler(deps.Messages, deps.MemoryNotes),
		gate:      gate,
		timeout:   opts.ModelTimeout,
		locks:     newConversationLocks(),
		nowFunc:   time.Now,
	}, nil
}

// GenerateTurn answers userText in the given conversation and persists the
// exchange. Errors wrap one of types.ErrNotFound, types.ErrBusinessRule,
// types.ErrInvalidState, types.ErrConfig or types.ErrUpstream.
func (g *Generator) GenerateTurn(ctx context.Context, conversationID int, userText string) (*Result, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, fmt.Errorf("%w: message text is required", types.ErrBusinessRule)
	}
	if utf8.RuneCountInString(userText) > types.MaxMessageRunes {
		return nil, fmt.Errorf("%w: message exceeds %d characters", types.ErrBusinessRule, types.MaxMessageRunes)
	}

	release, err := g.locks.acquire(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for conversation %d: %w", types.ErrUpstream, conversationID, err)
	}
	defer release()

	t := &turn{id: uuid.NewString(), conversationID: conversationID}

	t.enter(StateBuildingContext)
	tc, err := g.buildContext(ctx, conversationID)
	if err != nil {
		return nil, t.fail(err)
	}

	t.enter(StateAwaitingModel)
	completion, elapsed, err := g.callModel(ctx, tc, userText)
	if err != nil {
		return nil, t.fail(err)
	}

	t.enter(StateParsingResult)
	reply, parsed := g.parse(t, completion.Text)

	t.enter(StateValidating)
	aiEmotion := emotion.Neutral
	if parsed {
		aiEmotion = resolveAIEmotion(reply.AIEmotion, reply.AIEmotionConfidence, tc.cfg.EmotionConfidenceThreshold, tc.character)
		if string(aiEmotion) != reply.AIEmotion {
			slog.Debug("ai emotion overridden", "turn_id", t.id, "proposed", reply.AIEmotion,
				"confidence", reply.AIEmotionConfidence, "persisted", aiEmotion)
		}
	}
	userEmotion := emotion.ParseOrNeutral(reply.UserEmotion)

	if err := ctx.Err(); err != nil {
		return nil, t.fail(fmt.Errorf("%w: turn cancelled before persistence: %w", types.ErrUpstream, err))
	}

	t.enter(StatePersisting)
	now := g.nowFunc().UTC()
	latencyMS := elapsed.Milliseconds()
	userMsg := &types.Message{
		ConversationID:    conversationID,
		Role:              types.RoleUser,
		Content:           userText,
		Emotion:           userEmotion,
		EmotionConfidence: reply.UserEmotionConfidence,
		EmotionIntensity:  reply.UserEmotionIntensity,
		CreatedAt:         now,
	}
	assistantMsg := &types.Message{
		ConversationID:    conversationID,
		Role:              types.RoleAssistant,
		Content:           reply.Response,
		Emotion:           aiEmotion,
		EmotionConfidence: reply.AIEmotionConfidence,
		EmotionIntensity:  reply.AIEmotionIntensity,
		GenerationTimeMS:  &latencyMS,
		TokenCount:        completion.TokenCount,
		CreatedAt:         now,
	}
	var note *types.MemoryNote
	err = g.deps.Tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := g.deps.Messages.Append(ctx, userMsg); err != nil {
			return err
		}
		if err := g.deps.Messages.Append(ctx, assistantMsg); err != nil {
			return err
		}
		if g.gate.Decide(reply.MemoryNote, reply.MemoryNoteImportance) == memory.Keep {
			sourceID := assistantMsg.ID
			note = &types.MemoryNote{
				ConversationID:  conversationID,
				CharacterID:     tc.character.ID,
				Content:         *reply.MemoryNote,
				ImportanceScore: reply.MemoryNoteImportance,
				SourceMessageID: &sourceID,
				CreatedAt:       now,
			}
			if err := g.deps.MemoryNotes.Append(ctx, note); err != nil {
				return err
			}
		}
		if err := g.deps.Conversations.Touch(ctx, conversationID, 2, now); err != nil {
			return err
		}
		return g.deps.Characters.Touch(ctx, tc.character.ID, now)
	})
	if err != nil {
		return nil, t.fail(fmt.Errorf("%w: failed to persist turn: %w", types.ErrUpstream, err))
	}

	g.markReferenced(ctx, t, tc.prompt.MemoryNotes, now)

	t.enter(StateDone)
	slog.Info("turn completed", "turn_id", t.id, "conversation_id", conversationID,
		"emotion", assistantMsg.QualifiedEmotion(), "generation_ms", latencyMS, "memory_note", note != nil)
	return &Result{
		TurnID:         t.id,
		Message:        *assistantMsg,
		GenerationTime: elapsed,
		MemoryNote:     note,
	}, nil
}

// turnContext is everything resolved in BUILDING_CONTEXT.
type turnContext struct {
	conversation *types.Conversation
	character    *types.Character
	user         *types.User
	cfg          types.RuntimeConfig
	prompt       *prompt.Context
}

func (g *Generator) buildContext(ctx context.Context, conversationID int) (*turnContext, error) {
	conversation, err := g.deps.Conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		return nil, upstream(err)
	}

	character, err := g.deps.Characters.GetByID(ctx, conversation.CharacterID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			slog.Error("conversation references missing character",
				"conversation_id", conversationID, "character_id", conversation.CharacterID)
			return nil, fmt.Errorf("%w: conversation %d references missing character %d", types.ErrInvalidState, conversationID, conversation.CharacterID)
		}
		return nil, upstream(err)
	}

	var user *types.User
	if conversation.UserID != 0 && g.deps.Users != nil {
		user, err = g.deps.Users.GetByID(ctx, conversation.UserID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				slog.Error("conversation references missing user",
					"conversation_id", conversationID, "user_id", conversation.UserID)
				return nil, fmt.Errorf("%w: conversation %d references missing user %d", types.ErrInvalidState, conversationID, conversation.UserID)
			}
			return nil, upstream(err)
		}
	}

	cfg, err := g.deps.Config.Current(ctx)
	if err != nil {
		return nil, upstream(err)
	}

	assembled, err := g.assembler.Assemble(ctx, prompt.Input{
		Conversation: conversation,
		Character:    character,
		User:         user,
		Window:       cfg.ConversationMemoryLength,
	})
	if err != nil {
		return nil, upstream(err)
	}

	return &turnContext{
		conversation: conversation,
		character:    character,
		user:         user,
		cfg:          cfg,
		prompt:       assembled,
	}, nil
}

func (g *Generator) callModel(ctx context.Context, tc *turnContext, userText string) (models.Completion, time.Duration, error) {
	completer, err := g.deps.Models.Completer(ctx, tc.cfg)
	if err != nil {
		return models.Completion{}, 0, upstream(err)
	}

	instructions := make([]models.Instruction, 0, len(tc.prompt.History)+2)
	instructions = append(instructions, models.Instruction{Role: types.RoleSystem, Content: tc.prompt.SystemPrompt})
	for _, msg := range tc.prompt.History {
		instructions = append(instructions, models.Instruction{Role: msg.Role, Content: msg.Content})
	}
	instructions = append(instructions, models.Instruction{Role: types.RoleUser, Content: userText})

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := g.nowFunc()
	completion, err := completer.Complete(callCtx, instructions, models.Options{
		Temperature: tc.cfg.Temperature,
		MaxTokens:   tc.cfg.MaxTokens,
		GPULayers:   tc.cfg.GPULayers,
		Schema:      replySchema(tc.character),
	})
	elapsed := g.nowFunc().Sub(start)
	if err != nil {
		return models.Completion{}, elapsed, upstream(fmt.Errorf("model call failed after %s: %w", elapsed.Round(time.Millisecond), err))
	}
	if strings.TrimSpace(completion.Text) == "" {
		return models.Completion{}, elapsed, fmt.Errorf("%w: model returned empty output", types.ErrBusinessRule)
	}
	return completion, elapsed, nil
}

// parse returns the reply and whether it came from the model. Unparseable
// output is replaced by the fallback reply.
func (g *Generator) parse(t *turn, text string) (utils.TurnReply, bool) {
	reply, err := utils.ParseTurnReply(text)
	if err != nil {
		slog.Warn("model output rejected, using fallback reply", "turn_id", t.id,
			"conversation_id", t.conversationID, "error", err.Error())
		return fallbackReply(), false
	}
	return reply, true
}

func (g *Generator) markReferenced(ctx context.Context, t *turn, notes []types.MemoryNote, at time.Time) {
	if len(notes) == 0 {
		return
	}
	ids := make([]int, len(notes))
	for i, note := range notes {
		ids[i] = note.ID
	}
	if err := g.deps.MemoryNotes.MarkReferenced(ctx, ids, at); err != nil {
		slog.Warn("failed to stamp referenced memory notes", "turn_id", t.id, "error", err.Error())
	}
}

// upstream tags err as an upstream failure unless it already carries a
// classification.
func upstream(err error) error {
	for _, known := range []error{types.ErrConfig, types.ErrUpstream, types.ErrBusinessRule, types.ErrInvalidState, types.ErrNotFound} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", types.ErrUpstream, err)
}
