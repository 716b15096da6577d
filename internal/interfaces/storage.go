// Package interfaces defines service contracts for Emonk
package interfaces

import (
	"context"

	"github.com/auriga-os/emonk/internal/models"
)

// MemoryStore persists conversation history and fact memory for the chat
// surface, independent of the job store. Two backends implement it: a local
// BadgerHold-backed store and a SurrealDB-backed store, selected by the same
// storage.backend switch the job store uses.
type MemoryStore interface {
	// GetConversation returns the conversation for sessionID, creating an
	// empty one if none exists yet.
	GetConversation(ctx context.Context, sessionID string) (*models.Conversation, error)

	// SaveConversation persists the full conversation state.
	SaveConversation(ctx context.Context, conv *models.Conversation) error

	// SetFact stores a durable key/value fact against sessionID's conversation.
	SetFact(ctx context.Context, sessionID, key, value string) error

	// Close releases backend resources.
	Close() error
}

// SystemKV is a small non-user-scoped key-value store used for operator
// settings that don't belong in the static config file (e.g. a
// rotate-without-restart Gemini API key override).
type SystemKV interface {
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error
}
