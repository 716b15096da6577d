// Package memory implements interfaces.MemoryStore: durable conversation
// history and fact storage for the chat surface. Two backends are
// provided, selected by the same storage.backend switch the job store
// uses: LocalStore (BadgerHold, single process) and surreal.Store
// (SurrealDB, shared across replicas).
package memory

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/auriga-os/emonk/internal/common"
	"github.com/auriga-os/emonk/internal/interfaces"
	"github.com/auriga-os/emonk/internal/models"
)

// systemKV is the BadgerHold record type for non-user-scoped key-value pairs.
type systemKV struct {
	Key   string `badgerholdKey:"Key"`
	Value string
}

// LocalStore implements interfaces.MemoryStore and interfaces.SystemKV using
// BadgerHold, mirroring the teacher's InternalStore composite-key idiom.
type LocalStore struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewLocalStore opens a LocalStore rooted at path, creating it if absent.
func NewLocalStore(logger *common.Logger, path string) (*LocalStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create memory store path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("Memory store opened")
	return &LocalStore{db: db, logger: logger}, nil
}

func (s *LocalStore) GetConversation(_ context.Context, sessionID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.Get(sessionID, &conv); err != nil {
		if err == badgerhold.ErrNotFound {
			now := time.Now().UTC()
			return &models.Conversation{
				SessionID: sessionID,
				Facts:     make(map[string]string),
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		}
		return nil, fmt.Errorf("failed to get conversation '%s': %w", sessionID, err)
	}
	return &conv, nil
}

func (s *LocalStore) SaveConversation(_ context.Context, conv *models.Conversation) error {
	conv.UpdatedAt = time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}
	if err := s.db.Upsert(conv.SessionID, conv); err != nil {
		return fmt.Errorf("failed to save conversation '%s': %w", conv.SessionID, err)
	}
	return nil
}

func (s *LocalStore) SetFact(ctx context.Context, sessionID, key, value string) error {
	conv, err := s.GetConversation(ctx, sessionID)
	if err != nil {
		return err
	}
	if conv.Facts == nil {
		conv.Facts = make(map[string]string)
	}
	conv.Facts[key] = value
	return s.SaveConversation(ctx, conv)
}

func (s *LocalStore) GetSystemKV(_ context.Context, key string) (string, error) {
	var kv systemKV
	if err := s.db.Get(key, &kv); err != nil {
		if err == badgerhold.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get system kv '%s': %w", key, err)
	}
	return kv.Value, nil
}

func (s *LocalStore) SetSystemKV(_ context.Context, key, value string) error {
	if err := s.db.Upsert(key, &systemKV{Key: key, Value: value}); err != nil {
		return fmt.Errorf("failed to set system kv '%s': %w", key, err)
	}
	return nil
}

func (s *LocalStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var (
	_ interfaces.MemoryStore = (*LocalStore)(nil)
	_ interfaces.SystemKV    = (*LocalStore)(nil)
)
