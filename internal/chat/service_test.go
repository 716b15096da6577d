package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/auriga-os/emonk/internal/common"
	"github.com/auriga-os/emonk/internal/interfaces"
	"github.com/auriga-os/emonk/internal/models"
)

type fakeMemory struct {
	conversations map[string]*models.Conversation
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{conversations: make(map[string]*models.Conversation)}
}

func (f *fakeMemory) GetConversation(_ context.Context, sessionID string) (*models.Conversation, error) {
	if c, ok := f.conversations[sessionID]; ok {
		return c, nil
	}
	return &models.Conversation{SessionID: sessionID, Facts: make(map[string]string)}, nil
}

func (f *fakeMemory) SaveConversation(_ context.Context, conv *models.Conversation) error {
	f.conversations[conv.SessionID] = conv
	return nil
}

func (f *fakeMemory) SetFact(ctx context.Context, sessionID, key, value string) error {
	conv, _ := f.GetConversation(ctx, sessionID)
	conv.Facts[key] = value
	return f.SaveConversation(ctx, conv)
}

func (f *fakeMemory) Close() error { return nil }

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) GenerateContent(_ context.Context, _ string) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) GenerateWithURLContext(_ context.Context, _ string, _ ...string) (string, error) {
	return f.response, f.err
}

type fakeSkills struct {
	descriptors []models.SkillDescriptor
	dispatched  []string
	output      string
	err         error
}

func (f *fakeSkills) Descriptors() []models.SkillDescriptor { return f.descriptors }

func (f *fakeSkills) Dispatch(_ context.Context, name, _ string) (string, error) {
	f.dispatched = append(f.dispatched, name)
	return f.output, f.err
}

func TestHandleMessage_PlainReply(t *testing.T) {
	mem := newFakeMemory()
	llm := &fakeLLM{response: `{"reply":"hello there"}`}
	sk := &fakeSkills{}
	svc := NewService(mem, llm, sk, NewLimiter(60, 10), common.NewSilentLogger())

	reply, err := svc.HandleMessage(context.Background(), "s1", "hi")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Reply != "hello there" {
		t.Errorf("Reply = %q", reply.Reply)
	}
	if len(reply.SkillInvocations) != 0 {
		t.Errorf("expected no skill invocations, got %v", reply.SkillInvocations)
	}

	conv, _ := mem.GetConversation(context.Background(), "s1")
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages (user + assistant), got %d", len(conv.Messages))
	}
}

func TestHandleMessage_DispatchesSkill(t *testing.T) {
	mem := newFakeMemory()
	llm := &fakeLLM{response: `{"reply":"done","skill_name":"schedule_reminder","skill_input":"{}"}`}
	sk := &fakeSkills{output: "scheduled"}
	svc := NewService(mem, llm, sk, NewLimiter(60, 10), common.NewSilentLogger())

	reply, err := svc.HandleMessage(context.Background(), "s2", "remind me")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(reply.SkillInvocations) != 1 || reply.SkillInvocations[0] != "schedule_reminder" {
		t.Errorf("SkillInvocations = %v", reply.SkillInvocations)
	}
	if len(sk.dispatched) != 1 {
		t.Errorf("expected skill registry to be dispatched once, got %d", len(sk.dispatched))
	}
}

func TestHandleMessage_NonJSONFallsBackToVerbatim(t *testing.T) {
	mem := newFakeMemory()
	llm := &fakeLLM{response: "just plain text"}
	sk := &fakeSkills{}
	svc := NewService(mem, llm, sk, NewLimiter(60, 10), common.NewSilentLogger())

	reply, err := svc.HandleMessage(context.Background(), "s3", "hi")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Reply != "just plain text" {
		t.Errorf("Reply = %q", reply.Reply)
	}
}

func TestHandleMessage_RateLimited(t *testing.T) {
	mem := newFakeMemory()
	llm := &fakeLLM{response: `{"reply":"ok"}`}
	sk := &fakeSkills{}
	limiter := NewLimiter(1, 1)
	svc := NewService(mem, llm, sk, limiter, common.NewSilentLogger())

	if _, err := svc.HandleMessage(context.Background(), "s4", "hi"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := svc.HandleMessage(context.Background(), "s4", "hi again"); err == nil {
		t.Fatal("expected rate limit error on second call")
	}
}

func TestHandleMessage_RedactsPII(t *testing.T) {
	mem := newFakeMemory()
	llm := &fakeLLM{response: `{"reply":"ok"}`}
	sk := &fakeSkills{}
	svc := NewService(mem, llm, sk, NewLimiter(60, 10), common.NewSilentLogger())

	_, err := svc.HandleMessage(context.Background(), "s5", "email me at bob@example.com")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	conv, _ := mem.GetConversation(context.Background(), "s5")
	if !conv.Messages[0].Redacted {
		t.Error("expected the stored user message to be flagged redacted")
	}
}

func TestHandleMessage_LLMError(t *testing.T) {
	mem := newFakeMemory()
	llm := &fakeLLM{err: fmt.Errorf("upstream down")}
	sk := &fakeSkills{}
	svc := NewService(mem, llm, sk, NewLimiter(60, 10), common.NewSilentLogger())

	if _, err := svc.HandleMessage(context.Background(), "s6", "hi"); err == nil {
		t.Fatal("expected error when LLM call fails")
	}
}

var (
	_ interfaces.MemoryStore   = (*fakeMemory)(nil)
	_ interfaces.LLMClient     = (*fakeLLM)(nil)
	_ interfaces.SkillRegistry = (*fakeSkills)(nil)
)
