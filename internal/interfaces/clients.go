// Package interfaces defines service contracts for Emonk
package interfaces

import "context"

// LLMClient provides access to the assistant's language model backend.
type LLMClient interface {
	// GenerateContent generates a model response from a single prompt.
	GenerateContent(ctx context.Context, prompt string) (string, error)

	// GenerateWithURLContext generates a response with the given URLs
	// made available to the model as reference context.
	GenerateWithURLContext(ctx context.Context, prompt string, urls ...string) (string, error)
}
