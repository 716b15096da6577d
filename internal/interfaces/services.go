// Package interfaces defines service contracts for Emonk
package interfaces

import (
	"context"

	"github.com/auriga-os/emonk/internal/models"
)

// ChatService handles one inbound webhook message end to end: redact,
// append to the conversation, invoke the LLM with the skill catalog,
// dispatch any selected skill, persist the reply.
type ChatService interface {
	HandleMessage(ctx context.Context, sessionID, message string) (*ChatReply, error)
}

// ChatReply is the JSON card returned to the webhook caller.
type ChatReply struct {
	Reply            string   `json:"reply"`
	SkillInvocations []string `json:"skill_invocations"`
}

// SkillHandler executes one named skill against an input payload.
type SkillHandler func(ctx context.Context, input string) (string, error)

// SkillRegistry advertises and dispatches callable skills.
type SkillRegistry interface {
	Descriptors() []models.SkillDescriptor
	Dispatch(ctx context.Context, name, input string) (string, error)
}
