package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/auriga-os/emonk/internal/interfaces"
	"github.com/auriga-os/emonk/internal/models"
)

const conversationTable = "conversations"
const systemKVTable = "system_kv"

// SurrealStore implements interfaces.MemoryStore and interfaces.SystemKV
// against SurrealDB, following the same RecordID-keyed UPSERT/SELECT
// pattern as jobstore/surrealstore.
type SurrealStore struct {
	db *surrealdb.DB
}

// NewSurrealStore wraps an already-connected, signed-in SurrealDB handle.
// Bootstrap (DEFINE TABLE) is the caller's responsibility — see
// internal/storage/surrealdb.Connect, shared with the job store.
func NewSurrealStore(db *surrealdb.DB) *SurrealStore {
	return &SurrealStore{db: db}
}

func convRID(sessionID string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(conversationTable, sessionID)
}

func kvRID(key string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(systemKVTable, key)
}

func (s *SurrealStore) GetConversation(ctx context.Context, sessionID string) (*models.Conversation, error) {
	conv, err := surrealdb.Select[models.Conversation](ctx, s.db, convRID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("surreal memory: get conversation %s: %w", sessionID, err)
	}
	if conv == nil {
		now := time.Now().UTC()
		return &models.Conversation{
			SessionID: sessionID,
			Facts:     make(map[string]string),
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	return conv, nil
}

func (s *SurrealStore) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	conv.UpdatedAt = time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}
	sql := `UPSERT $rid CONTENT $conv`
	vars := map[string]any{
		"rid":  convRID(conv.SessionID),
		"conv": conv,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("surreal memory: save conversation %s: %w", conv.SessionID, err)
	}
	return nil
}

func (s *SurrealStore) SetFact(ctx context.Context, sessionID, key, value string) error {
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

func (s *SurrealStore) GetSystemKV(ctx context.Context, key string) (string, error) {
	sql := "SELECT value FROM $rid"
	rows, err := surrealdb.Query[[]struct {
		Value string `json:"value"`
	}](ctx, s.db, sql, map[string]any{"rid": kvRID(key)})
	if err != nil {
		return "", fmt.Errorf("surreal memory: get system kv %s: %w", key, err)
	}
	if rows == nil || len(*rows) == 0 || len((*rows)[0].Result) == 0 {
		return "", nil
	}
	return (*rows)[0].Result[0].Value, nil
}

func (s *SurrealStore) SetSystemKV(ctx context.Context, key, value string) error {
	sql := `UPSERT $rid CONTENT { key: $key, value: $value }`
	vars := map[string]any{"rid": kvRID(key), "key": key, "value": value}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("surreal memory: set system kv %s: %w", key, err)
	}
	return nil
}

func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

var (
	_ interfaces.MemoryStore = (*SurrealStore)(nil)
	_ interfaces.SystemKV    = (*SurrealStore)(nil)
)
