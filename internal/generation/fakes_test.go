package generation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/easeaico/eve/internal/models"
	"github.com/easeaico/eve/internal/types"
)

// fakeDB is an in-memory store with snapshot rollback for transactions.
type fakeDB struct {
	mu            sync.Mutex
	conversations map[int]types.Conversation
	characters    map[int]types.Character
	users         map[int]types.User
	messages      []types.Message
	notes         []types.MemoryNote
	nextID        int
	referenced    []int

	failMessageAppend bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		conversations: make(map[int]types.Conversation),
		characters:    make(map[int]types.Character),
		users:         make(map[int]types.User),
	}
}

func (db *fakeDB) id() int {
	db.nextID++
	return db.nextID
}

type fakeSnapshot struct {
	conversations map[int]types.Conversation
	characters    map[int]types.Character
	messages      []types.Message
	notes         []types.MemoryNote
	nextID        int
}

func (db *fakeDB) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	db.mu.Lock()
	snap := fakeSnapshot{
		conversations: make(map[int]types.Conversation, len(db.conversations)),
		characters:    make(map[int]types.Character, len(db.characters)),
		messages:      append([]types.Message(nil), db.messages...),
		notes:         append([]types.MemoryNote(nil), db.notes...),
		nextID:        db.nextID,
	}
	for k, v := range db.conversations {
		snap.conversations[k] = v
	}
	for k, v := range db.characters {
		snap.characters[k] = v
	}
	db.mu.Unlock()

	if err := fn(ctx); err != nil {
		db.mu.Lock()
		db.conversations = snap.conversations
		db.characters = snap.characters
		db.messages = snap.messages
		db.notes = snap.notes
		db.nextID = snap.nextID
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *fakeDB) conversationMessages(conversationID int) []types.Message {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []types.Message
	for _, m := range db.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

type fakeConversations struct{ db *fakeDB }

func (f fakeConversations) GetByID(_ context.Context, id int) (*types.Conversation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %d", types.ErrNotFound, id)
	}
	return &c, nil
}

func (f fakeConversations) Touch(_ context.Context, id, delta int, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.conversations[id]
	if !ok {
		return fmt.Errorf("%w: conversation %d", types.ErrNotFound, id)
	}
	c.MessageCount += delta
	c.LastActivity = at
	f.db.conversations[id] = c
	return nil
}

type fakeCharacters struct{ db *fakeDB }

func (f fakeCharacters) GetByID(_ context.Context, id int) (*types.Character, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.characters[id]
	if !ok {
		return nil, fmt.Errorf("%w: character %d", types.ErrNotFound, id)
	}
	return &c, nil
}

func (f fakeCharacters) Touch(_ context.Context, id int, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.characters[id]
	if !ok {
		return fmt.Errorf("%w: character %d", types.ErrNotFound, id)
	}
	c.LastInteractionAt = &at
	f.db.characters[id] = c
	return nil
}

type fakeUsers struct{ db *fakeDB }

func (f fakeUsers) GetByID(_ context.Context, id int) (*types.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", types.ErrNotFound, id)
	}
	return &u, nil
}

type fakeMessages struct{ db *fakeDB }

func (f fakeMessages) Recent(_ context.Context, conversationID, limit int) ([]types.Message, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []types.Message
	for _, m := range f.db.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeMessages) Append(_ context.Context, m *types.Message) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failMessageAppend && m.Role == types.RoleAssistant {
		return errors.New("disk full")
	}
	m.ID = f.db.id()
	f.db.messages = append(f.db.messages, *m)
	return nil
}

type fakeNotes struct{ db *fakeDB }

func (f fakeNotes) Top(_ context.Context, conversationID, limit int) ([]types.MemoryNote, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []types.MemoryNote
	for _, n := range f.db.notes {
		if n.ConversationID == conversationID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ImportanceScore > out[j].ImportanceScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeNotes) Append(_ context.Context, n *types.MemoryNote) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n.ID = f.db.id()
	f.db.notes = append(f.db.notes, *n)
	return nil
}

func (f fakeNotes) MarkReferenced(_ context.Context, ids []int, _ time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.referenced = append(f.db.referenced, ids...)
	return nil
}

type fakeConfig struct {
	cfg types.RuntimeConfig
	err error
}

func (f *fakeConfig) Current(context.Context) (types.RuntimeConfig, error) {
	return f.cfg, f.err
}

// fakeCompleter returns canned replies and records requests.
type fakeCompleter struct {
	mu          sync.Mutex
	text        string
	tokens      *int
	err         error
	block       bool
	delay       time.Duration
	calls       [][]models.Instruction
	opts        []models.Options
	inFlight    int
	maxInFlight int
}

func (f *fakeCompleter) Complete(ctx context.Context, instructions []models.Instruction, opts models.Options) (models.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, instructions)
	f.opts = append(f.opts, opts)
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.block {
		<-ctx.Done()
		return models.Completion{}, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return models.Completion{}, f.err
	}
	return models.Completion{Text: f.text, TokenCount: f.tokens}, nil
}

type fakeModels struct {
	completer models.Completer
	err       error
}

func (f fakeModels) Completer(context.Context, types.RuntimeConfig) (models.Completer, error) {
	return f.completer, f.err
}
