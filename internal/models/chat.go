package models

import "time"

// ChatMessage is one turn in a Conversation's history.
type ChatMessage struct {
	Role     string    `json:"role"` // "user", "assistant", "system"
	Content  string    `json:"content"`
	Redacted bool      `json:"redacted"`
	At       time.Time `json:"at"`
}

// Conversation is the persisted message history and fact memory for one
// chat session, addressed by SessionID across stateless server instances.
type Conversation struct {
	SessionID string            `json:"session_id"`
	Messages  []ChatMessage     `json:"messages"`
	Facts     map[string]string `json:"facts,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SkillDescriptor advertises a callable skill to the LLM.
type SkillDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"input_schema"` // JSON schema, embedded as a string in the catalog prompt
}

// SkillInvocation records one skill call made while handling a webhook message.
type SkillInvocation struct {
	Name   string `json:"name"`
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}
