package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/auriga-os/emonk/internal/common"
	"github.com/auriga-os/emonk/internal/interfaces"
	"github.com/auriga-os/emonk/internal/models"
	"github.com/auriga-os/emonk/internal/scheduler"
)

// PingHandler is the trivial liveness job kind: it only logs. Useful for
// operators verifying the tick loop and lease machinery end to end without
// touching the LLM or memory store.
func PingHandler(logger *common.Logger) scheduler.Handler {
	return func(ctx context.Context, payload []byte) error {
		logger.Info().Str("payload", string(payload)).Msg("ping job fired")
		return nil
	}
}

// ReminderJobHandler delivers a "reminder" job's message by appending it to
// the target conversation as an assistant message, so it surfaces the next
// time the session is read.
func ReminderJobHandler(store interfaces.MemoryStore, logger *common.Logger) scheduler.Handler {
	return func(ctx context.Context, payload []byte) error {
		var in struct {
			Message   string `json:"message"`
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(payload, &in); err != nil {
			return fmt.Errorf("reminder: invalid payload: %w", err)
		}
		sessionID := in.SessionID
		if sessionID == "" {
			sessionID = "default"
		}

		conv, err := store.GetConversation(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("reminder: load conversation: %w", err)
		}
		conv.Messages = append(conv.Messages, models.ChatMessage{
			Role:    "assistant",
			Content: in.Message,
			At:      time.Now().UTC(),
		})
		if err := store.SaveConversation(ctx, conv); err != nil {
			return fmt.Errorf("reminder: save conversation: %w", err)
		}
		logger.Info().Str("session_id", sessionID).Msg("reminder delivered")
		return nil
	}
}

// ChatDigestHandler summarizes a conversation's recent activity through the
// LLM and stores the result as a fact, exercising the recurring "every"
// schedule kind against a real downstream dependency (the LLM client).
func ChatDigestHandler(memStore interfaces.MemoryStore, llmClient interfaces.LLMClient, logger *common.Logger) scheduler.Handler {
	return func(ctx context.Context, payload []byte) error {
		var in struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(payload, &in); err != nil {
			return fmt.Errorf("chat_digest: invalid payload: %w", err)
		}
		sessionID := in.SessionID
		if sessionID == "" {
			sessionID = "default"
		}

		conv, err := memStore.GetConversation(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("chat_digest: load conversation: %w", err)
		}
		if len(conv.Messages) == 0 {
			logger.Debug().Str("session_id", sessionID).Msg("chat_digest: nothing to summarize")
			return nil
		}

		var sb strings.Builder
		for _, m := range conv.Messages {
			sb.WriteString(m.Role)
			sb.WriteString(": ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}

		summary, err := llmClient.GenerateContent(ctx, "Summarize this conversation in two sentences:\n\n"+sb.String())
		if err != nil {
			return fmt.Errorf("chat_digest: generate summary: %w", err)
		}
		if err := memStore.SetFact(ctx, sessionID, "last_digest", summary); err != nil {
			return fmt.Errorf("chat_digest: store summary: %w", err)
		}
		logger.Info().Str("session_id", sessionID).Msg("chat digest stored")
		return nil
	}
}
