// Package llm provides the assistant's language model client.
package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/auriga-os/emonk/internal/common"
	"github.com/auriga-os/emonk/internal/interfaces"
)

const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultMaxURLs = 20
)

// Client implements interfaces.LLMClient against the Gemini API.
type Client struct {
	client  *genai.Client
	model   string
	maxURLs int
	logger  *common.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithModel sets the model to use.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxURLs sets the maximum URLs accepted for URL context.
func WithMaxURLs(maxURLs int) ClientOption {
	return func(c *Client) {
		c.maxURLs = maxURLs
	}
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client:  genaiClient,
		model:   DefaultModel,
		maxURLs: DefaultMaxURLs,
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Close closes the client.
func (c *Client) Close() error {
	return nil
}

// GenerateContent generates a model response from a single prompt.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug().Str("model", c.model).Msg("Generating content")

	contents := genai.Text(prompt)
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(result)
}

// GenerateWithURLContext generates a response with the given URLs available
// to the model as reference context via Gemini's URL context tool.
func (c *Client) GenerateWithURLContext(ctx context.Context, prompt string, urls ...string) (string, error) {
	c.logger.Debug().Str("model", c.model).Int("urls", len(urls)).Msg("Generating content with URL context")

	if len(urls) > c.maxURLs {
		urls = urls[:c.maxURLs]
	}

	if len(urls) > 0 {
		var sb strings.Builder
		sb.WriteString("Reference URLs:\n")
		for _, u := range urls {
			sb.WriteString("- ")
			sb.WriteString(u)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		sb.WriteString(prompt)
		prompt = sb.String()
	}

	contents := genai.Text(prompt)
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{URLContext: &genai.URLContext{}}},
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content with URL context: %w", err)
	}

	return extractTextFromResponse(result)
}

// extractTextFromResponse extracts text from a generate content response.
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return text, nil
}

var _ interfaces.LLMClient = (*Client)(nil)
