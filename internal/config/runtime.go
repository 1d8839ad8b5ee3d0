package config

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/easeaico/eve/internal/types"
)

// RuntimeStore persists the runtime configuration row.
type RuntimeStore interface {
	Load(ctx context.Context) (types.RuntimeConfig, error)
	Save(ctx context.Context, cfg types.RuntimeConfig) error
}

// RuntimeService caches the runtime configuration as an immutable snapshot.
// Readers never block on writers; loads and updates are serialised.
type RuntimeService struct {
	store   RuntimeStore
	current atomic.Pointer[types.RuntimeConfig]
	mu      sync.Mutex
	nowFunc func() time.Time
}

// NewRuntimeService creates a RuntimeService. Nothing is read until first use.
func NewRuntimeService(store RuntimeStore) *RuntimeService {
	return &RuntimeService{store: store, nowFunc: time.Now}
}

// Current returns the cached snapshot, loading it on first access.
func (s *RuntimeService) Current(ctx context.Context) (types.RuntimeConfig, error) {
	if cfg := s.current.Load(); cfg != nil {
		return *cfg, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg := s.current.Load(); cfg != nil {
		return *cfg, nil
	}
	return s.loadLocked(ctx)
}

// Reload discards the cache and re-reads storage.
func (s *RuntimeService) Reload(ctx context.Context) (types.RuntimeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Update applies patch to the current snapshot, validates and persists the
// result, then swaps it in. On error the previous snapshot stays current.
func (s *RuntimeService) Update(ctx context.Context, patch types.RuntimeConfigPatch) (types.RuntimeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.current.Load()
	if base == nil {
		loaded, err := s.loadLocked(ctx)
		if err != nil {
			return types.RuntimeConfig{}, err
		}
		base = &loaded
	}

	next := patch.Apply(*base)
	if err := next.Validate(); err != nil {
		return types.RuntimeConfig{}, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return types.RuntimeConfig{}, fmt.Errorf("failed to save runtime config: %w", err)
	}
	next.UpdatedAt = s.nowFunc().UTC()
	s.current.Store(&next)
	return next, nil
}

func (s *RuntimeService) loadLocked(ctx context.Context) (types.RuntimeConfig, error) {
	cfg, err := s.store.Load(ctx)
	if err != nil {
		return types.RuntimeConfig{}, fmt.Errorf("failed to load runtime config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return types.RuntimeConfig{}, fmt.Errorf("stored runtime config is invalid: %w", err)
	}
	s.current.Store(&cfg)
	return cfg, nil
}
