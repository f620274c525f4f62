package adapter

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GoogleAdapter implements the Adapter interface for Gemini models.
type GoogleAdapter struct {
	client *genai.Client
}

// NewGoogleAdapter creates a new Google Gemini adapter.
func NewGoogleAdapter(apiKey string) (*GoogleAdapter, error) {
	if apiKey == "" {
		return nil, &Error{Code: CodeAuthRequired, Err: fmt.Errorf("google API key is required")}
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleAdapter{
		client: client,
	}, nil
}

// Name returns the adapter identifier.
func (a *GoogleAdapter) Name() string {
	return "google"
}

// Models returns the list of supported Gemini models.
func (a *GoogleAdapter) Models() []string {
	return []string{
		"gemini-2.0-pro",
	}
}

// Generate sends a prompt to Gemini.
func (a *GoogleAdapter) Generate(ctx context.Context, model string, prompt string, opts Options) (*Response, error) {
	var cfg *genai.GenerateContentConfig
	if opts.System != "" || opts.Temperature != nil {
		cfg = &genai.GenerateContentConfig{}
		if opts.System != "" {
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: opts.System}}}
		}
		if opts.Temperature != nil {
			t := float32(*opts.Temperature)
			cfg.Temperature = &t
		}
	}

	resp, err := a.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, statusError(apiErr.Code, fmt.Errorf("google API error: %w", err))
		}
		return nil, fmt.Errorf("google API error: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &Error{Code: CodeParseError, Err: fmt.Errorf("google returned no candidates")}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	out := &Response{
		Content: content,
		Metadata: map[string]string{
			"provider":      a.Name(),
			"model":         model,
			"finish_reason": string(resp.Candidates[0].FinishReason),
		},
	}
	if meta := resp.UsageMetadata; meta != nil {
		usage := Usage{
			PromptTokens:     int(meta.PromptTokenCount),
			CompletionTokens: int(meta.CandidatesTokenCount),
			TotalTokens:      int(meta.TotalTokenCount),
		}.Normalize()
		out.Usage = &usage
	}
	return out, nil
}
