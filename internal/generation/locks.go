package generation

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// conversationLocks serialises turns per conversation. Entries are dropped
// once no turn holds or waits on them.
type conversationLocks struct {
	mu      sync.Mutex
	entries map[int]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{entries: make(map[int]*lockEntry)}
}

// acquire blocks until the conversation is free or ctx is done. The returned
// func releases the lock.
func (l *conversationLocks) acquire(ctx context.Context, conversationID int) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[conversationID]
	if !ok {
		entry = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		l.drop(conversationID, entry)
		return nil, err
	}
	return func() {
		entry.sem.Release(1)
		l.drop(conversationID, entry)
	}, nil
}

func (l *conversationLocks) drop(conversationID int, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, conversationID)
	}
}

func (l *conversationLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
