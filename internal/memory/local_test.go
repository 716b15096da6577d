package memory

import (
	"context"
	"testing"

	"github.com/auriga-os/emonk/internal/common"
	"github.com/auriga-os/emonk/internal/models"
)

func TestLocalStore_ConversationRoundTrip(t *testing.T) {
	store, err := NewLocalStore(common.NewSilentLogger(), t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	conv, err := store.GetConversation(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetConversation (fresh): %v", err)
	}
	if len(conv.Messages) != 0 {
		t.Fatalf("expected empty conversation, got %d messages", len(conv.Messages))
	}

	conv.Messages = append(conv.Messages, models.ChatMessage{Role: "user", Content: "hello"})
	if err := store.SaveConversation(ctx, conv); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}

	reloaded, err := store.GetConversation(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetConversation (reload): %v", err)
	}
	if len(reloaded.Messages) != 1 || reloaded.Messages[0].Content != "hello" {
		t.Fatalf("reloaded conversation = %+v", reloaded)
	}
}

func TestLocalStore_SetFact(t *testing.T) {
	store, err := NewLocalStore(common.NewSilentLogger(), t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SetFact(ctx, "session-2", "timezone", "Australia/Sydney"); err != nil {
		t.Fatalf("SetFact: %v", err)
	}
	conv, err := store.GetConversation(ctx, "session-2")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.Facts["timezone"] != "Australia/Sydney" {
		t.Errorf("Facts = %+v", conv.Facts)
	}
}

func TestLocalStore_SystemKV(t *testing.T) {
	store, err := NewLocalStore(common.NewSilentLogger(), t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	v, err := store.GetSystemKV(ctx, "missing")
	if err != nil {
		t.Fatalf("GetSystemKV (missing): %v", err)
	}
	if v != "" {
		t.Errorf("expected empty string for missing key, got %q", v)
	}

	if err := store.SetSystemKV(ctx, "schema_version", "1"); err != nil {
		t.Fatalf("SetSystemKV: %v", err)
	}
	v, err = store.GetSystemKV(ctx, "schema_version")
	if err != nil {
		t.Fatalf("GetSystemKV: %v", err)
	}
	if v != "1" {
		t.Errorf("GetSystemKV = %q, want %q", v, "1")
	}
}
