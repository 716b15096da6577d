package skills

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/auriga-os/emonk/internal/common"
	"github.com/auriga-os/emonk/internal/models"
)

type fakeMemoryStore struct {
	conversations map[string]*models.Conversation
}

func newFakeMemoryStore() *fakeMemoryStore {
	return &fakeMemoryStore{conversations: make(map[string]*models.Conversation)}
}

func (f *fakeMemoryStore) GetConversation(_ context.Context, sessionID string) (*models.Conversation, error) {
	if c, ok := f.conversations[sessionID]; ok {
		return c, nil
	}
	return &models.Conversation{SessionID: sessionID, Facts: make(map[string]string)}, nil
}

func (f *fakeMemoryStore) SaveConversation(_ context.Context, conv *models.Conversation) error {
	f.conversations[conv.SessionID] = conv
	return nil
}

func (f *fakeMemoryStore) SetFact(ctx context.Context, sessionID, key, value string) error {
	conv, _ := f.GetConversation(ctx, sessionID)
	conv.Facts[key] = value
	return f.SaveConversation(ctx, conv)
}

func (f *fakeMemoryStore) Close() error { return nil }

type fakeLLMClient struct{ response string }

func (f *fakeLLMClient) GenerateContent(context.Context, string) (string, error) {
	return f.response, nil
}

func (f *fakeLLMClient) GenerateWithURLContext(context.Context, string, ...string) (string, error) {
	return f.response, nil
}

func TestPingHandler(t *testing.T) {
	h := PingHandler(common.NewSilentLogger())
	if err := h(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("ping handler: %v", err)
	}
}

func TestReminderJobHandler_AppendsMessage(t *testing.T) {
	mem := newFakeMemoryStore()
	h := ReminderJobHandler(mem, common.NewSilentLogger())

	payload, _ := json.Marshal(map[string]string{"message": "take out the trash", "session_id": "s1"})
	if err := h(context.Background(), payload); err != nil {
		t.Fatalf("reminder handler: %v", err)
	}

	conv, _ := mem.GetConversation(context.Background(), "s1")
	if len(conv.Messages) != 1 || conv.Messages[0].Content != "take out the trash" {
		t.Fatalf("conversation messages = %+v", conv.Messages)
	}
}

func TestChatDigestHandler_StoresSummary(t *testing.T) {
	mem := newFakeMemoryStore()
	conv := &models.Conversation{
		SessionID: "s2",
		Facts:     make(map[string]string),
		Messages: []models.ChatMessage{
			{Role: "user", Content: "what's on my schedule today?"},
			{Role: "assistant", Content: "nothing yet"},
		},
	}
	mem.conversations["s2"] = conv

	llm := &fakeLLMClient{response: "Discussed an empty schedule."}
	h := ChatDigestHandler(mem, llm, common.NewSilentLogger())

	payload, _ := json.Marshal(map[string]string{"session_id": "s2"})
	if err := h(context.Background(), payload); err != nil {
		t.Fatalf("chat digest handler: %v", err)
	}

	got, _ := mem.GetConversation(context.Background(), "s2")
	if got.Facts["last_digest"] != "Discussed an empty schedule." {
		t.Errorf("last_digest fact = %q", got.Facts["last_digest"])
	}
}

func TestChatDigestHandler_NoopOnEmptyConversation(t *testing.T) {
	mem := newFakeMemoryStore()
	llm := &fakeLLMClient{response: "should not be used"}
	h := ChatDigestHandler(mem, llm, common.NewSilentLogger())

	payload, _ := json.Marshal(map[string]string{"session_id": "empty"})
	if err := h(context.Background(), payload); err != nil {
		t.Fatalf("chat digest handler: %v", err)
	}

	conv, _ := mem.GetConversation(context.Background(), "empty")
	if _, ok := conv.Facts["last_digest"]; ok {
		t.Error("expected no digest fact for an empty conversation")
	}
}
