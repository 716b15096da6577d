package llm

import (
	"testing"

	"google.golang.org/genai"
)

func TestExtractTextFromResponse_ConcatenatesParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "hello "},
						{Text: "world"},
					},
				},
			},
		},
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		t.Fatalf("extractTextFromResponse: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}
}

func TestExtractTextFromResponse_NoCandidates(t *testing.T) {
	resp := &genai.GenerateContentResponse{}
	if _, err := extractTextFromResponse(resp); err == nil {
		t.Fatal("expected an error for a response with no candidates")
	}
}

func TestExtractTextFromResponse_NilContent(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{}},
	}
	if _, err := extractTextFromResponse(resp); err == nil {
		t.Fatal("expected an error when the candidate has no content")
	}
}

func TestExtractTextFromResponse_EmptyParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: nil}},
		},
	}
	if _, err := extractTextFromResponse(resp); err == nil {
		t.Fatal("expected an error when content has no parts")
	}
}

func TestClientOptions_ApplyOverDefaults(t *testing.T) {
	c := &Client{model: DefaultModel, maxURLs: DefaultMaxURLs}

	WithModel("gemini-custom")(c)
	WithMaxURLs(5)(c)

	if c.model != "gemini-custom" {
		t.Errorf("model = %q", c.model)
	}
	if c.maxURLs != 5 {
		t.Errorf("maxURLs = %d", c.maxURLs)
	}
}

func TestWithModel_EmptyLeavesDefault(t *testing.T) {
	c := &Client{model: DefaultModel}
	WithModel("")(c)
	if c.model != DefaultModel {
		t.Errorf("model = %q, want default %q", c.model, DefaultModel)
	}
}
