package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/auriga-os/emonk/internal/common"
	"github.com/auriga-os/emonk/internal/interfaces"
	"github.com/auriga-os/emonk/internal/models"
)

// maxSkillCallsPerMessage bounds how many skills one inbound message may
// trigger — a message selects at most one skill kind, matching the
// single-shot webhook handler contract.
const maxSkillCallsPerMessage = 1

// Service implements interfaces.ChatService: it owns the ingest -> redact ->
// append -> LLM -> skill-dispatch -> persist pipeline for one inbound
// webhook message.
type Service struct {
	Memory  interfaces.MemoryStore
	LLM     interfaces.LLMClient
	Skills  interfaces.SkillRegistry
	Limiter *Limiter
	Logger  *common.Logger
}

// NewService wires a Service from its dependencies.
func NewService(memory interfaces.MemoryStore, llm interfaces.LLMClient, skills interfaces.SkillRegistry, limiter *Limiter, logger *common.Logger) *Service {
	return &Service{Memory: memory, LLM: llm, Skills: skills, Limiter: limiter, Logger: logger}
}

// llmDecision is the structured response the model is asked to return: a
// reply to show the user, and optionally one skill call to make first.
type llmDecision struct {
	Reply     string `json:"reply"`
	SkillName string `json:"skill_name,omitempty"`
	SkillInput string `json:"skill_input,omitempty"`
}

// HandleMessage runs one inbound message through the full pipeline and
// returns the reply card to send back to the webhook caller.
func (s *Service) HandleMessage(ctx context.Context, sessionID, message string) (*interfaces.ChatReply, error) {
	if s.Limiter != nil && !s.Limiter.Allow(sessionID) {
		return nil, fmt.Errorf("chat: rate limit exceeded for session %s", sessionID)
	}

	scrubbed, wasRedacted := Redact(message)

	conv, err := s.Memory.GetConversation(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: load conversation: %w", err)
	}
	now := time.Now().UTC()
	conv.Messages = append(conv.Messages, models.ChatMessage{
		Role:     "user",
		Content:  scrubbed,
		Redacted: wasRedacted,
		At:       now,
	})

	prompt := s.buildPrompt(conv, scrubbed)
	raw, err := s.LLM.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("chat: generate content: %w", err)
	}

	decision, err := parseDecision(raw)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("chat: model response was not a decision card, using it verbatim")
		decision = llmDecision{Reply: raw}
	}

	reply := &interfaces.ChatReply{Reply: decision.Reply}

	if decision.SkillName != "" {
		output, dispatchErr := s.Skills.Dispatch(ctx, decision.SkillName, decision.SkillInput)
		if dispatchErr != nil {
			s.Logger.Warn().Err(dispatchErr).Str("skill", decision.SkillName).Msg("skill dispatch failed")
			reply.Reply = fmt.Sprintf("%s (note: %s failed: %v)", reply.Reply, decision.SkillName, dispatchErr)
		} else {
			reply.SkillInvocations = append(reply.SkillInvocations, decision.SkillName)
			if reply.Reply == "" {
				reply.Reply = output
			}
		}
	}

	conv.Messages = append(conv.Messages, models.ChatMessage{
		Role:    "assistant",
		Content: reply.Reply,
		At:      time.Now().UTC(),
	})
	if err := s.Memory.SaveConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("chat: save conversation: %w", err)
	}

	return reply, nil
}

// buildPrompt assembles the model prompt from recent history, the fact
// memory, and the skill catalog, asking for a JSON decision card back.
func (s *Service) buildPrompt(conv *models.Conversation, latest string) string {
	var sb strings.Builder
	sb.WriteString("You are a single-tenant personal assistant. Respond with a JSON object ")
	sb.WriteString(`{"reply": "...", "skill_name": "...", "skill_input": "..."}`)
	sb.WriteString(". skill_name and skill_input are optional; include them only when one ")
	sb.WriteString("of the following skills should run before replying:\n")
	for _, d := range s.Skills.Descriptors() {
		sb.WriteString(fmt.Sprintf("- %s: %s (input schema: %s)\n", d.Name, d.Description, d.InputSchema))
	}
	if len(conv.Facts) > 0 {
		sb.WriteString("\nKnown facts:\n")
		for k, v := range conv.Facts {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", k, v))
		}
	}
	sb.WriteString("\nRecent conversation:\n")
	start := 0
	if len(conv.Messages) > 10 {
		start = len(conv.Messages) - 10
	}
	for _, m := range conv.Messages[start:] {
		sb.WriteString(fmt.Sprintf("%s: %s\n", m.Role, m.Content))
	}
	sb.WriteString("\nLatest message: ")
	sb.WriteString(latest)
	return sb.String()
}

// parseDecision extracts a JSON decision card from raw, tolerating a
// markdown code fence the model may wrap it in.
func parseDecision(raw string) (llmDecision, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var d llmDecision
	if err := json.Unmarshal([]byte(trimmed), &d); err != nil {
		return llmDecision{}, fmt.Errorf("decode decision card: %w", err)
	}
	return d, nil
}

var _ interfaces.ChatService = (*Service)(nil)
