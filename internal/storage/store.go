// Package storage persists characters, conversations, messages, memory notes
// and runtime configuration with GORM on PostgreSQL or SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/easeaico/eve/internal/types"
)

// Store holds the DB handle and repositories.
type Store struct {
	db            *gorm.DB
	Characters    *CharacterRepo
	Users         *UserRepo
	Conversations *ConversationRepo
	Messages      *MessageRepo
	MemoryNotes   *MemoryNoteRepo
	RuntimeConfig *RuntimeConfigRepo
}

// NewStore opens the database named by databaseURL. postgres:// URLs use
// PostgreSQL, anything else is treated as a SQLite DSN or file path.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := gorm.Open(dialectorFor(databaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if isSQLite(databaseURL) {
		// SQLite allows one writer; a single connection also keeps :memory: databases shared.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newStore(db), nil
}

func newStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Characters:    &CharacterRepo{db: db},
		Users:         &UserRepo{db: db},
		Conversations: &ConversationRepo{db: db},
		Messages:      &MessageRepo{db: db},
		MemoryNotes:   &MemoryNoteRepo{db: db},
		RuntimeConfig: &RuntimeConfigRepo{db: db},
	}
}

func isSQLite(databaseURL string) bool {
	return !strings.HasPrefix(databaseURL, "postgres://") && !strings.HasPrefix(databaseURL, "postgresql://")
}

func dialectorFor(databaseURL string) gorm.Dialector {
	if isSQLite(databaseURL) {
		return sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
	}
	return postgres.Open(databaseURL)
}

// AutoMigrate creates or updates the application tables.
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&runtimeConfigModel{},
		&characterModel{},
		&userModel{},
		&conversationModel{},
		&messageModel{},
		&memoryNoteModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}

type txKey struct{}

// InTransaction runs fn inside one database transaction. Repository calls
// made with the ctx passed to fn join that transaction. Nested calls reuse
// the outer transaction.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or db.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// notFound maps gorm's missing-record error onto the shared taxonomy.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", types.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("failed to get %s: %w", fmt.Sprintf(format, args...), err)
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.db == nil {
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
