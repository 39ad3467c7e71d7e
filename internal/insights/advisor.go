package insights

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Request is one synchronous call to the language-model collaborator.
type Request struct {
	// System is the system instruction for the model.
	System string

	// Prompt is the user content.
	Prompt string

	// Temperature controls sampling randomness.
	Temperature float32

	// MaxOutputTokens caps the completion size.
	MaxOutputTokens int32
}

// Advisor provides an interface for language-model completions. It enables
// mocking of the external model in tests and keeps the client an injected
// dependency rather than a package-level singleton.
type Advisor interface {
	// Generate sends the request to the model and returns its text reply.
	Generate(ctx context.Context, req Request) (string, error)
}

// GeminiAdvisor is the concrete Advisor backed by the Gemini API.
type GeminiAdvisor struct {
	client *genai.Client
	model  string
}

// NewGeminiAdvisor creates a Gemini-backed advisor with a shared client.
func NewGeminiAdvisor(ctx context.Context, model string) (*GeminiAdvisor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiAdvisor: create genai client: %w", err)
	}
	return &GeminiAdvisor{
		client: client,
		model:  model,
	}, nil
}

// Generate implements the Advisor interface.
func (a *GeminiAdvisor) Generate(ctx context.Context, req Request) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: req.Prompt},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.System},
			},
		}
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Generate: empty response from model")
	}
	return text, nil
}
