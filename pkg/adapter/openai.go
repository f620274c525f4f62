package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter implements the Adapter interface for OpenAI models. With a
// base URL it also serves OpenAI-compatible local runtimes.
type OpenAIAdapter struct {
	client openai.Client
	name   string
	models []string
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, &Error{Code: CodeAuthRequired, Err: fmt.Errorf("openai API key is required")}
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAdapter{
		client: client,
		name:   "openai",
		models: []string{
			"gpt-5.2-instant",
			"gpt-5.2-thinking",
			"gpt-5.2-pro",
		},
	}, nil
}

// NewLocalAdapter creates an adapter for a local OpenAI-compatible endpoint
// such as Ollama or Docker Model Runner.
func NewLocalAdapter(name, baseURL string, models []string) (*OpenAIAdapter, error) {
	if name == "" {
		return nil, fmt.Errorf("local adapter name is required")
	}
	if baseURL == "" {
		return nil, &Error{Code: CodeConnectionRefused, Err: fmt.Errorf("%s endpoint is not configured", name)}
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		// Local runtimes ignore the key but the client requires one.
		option.WithAPIKey("local"),
	)
	return &OpenAIAdapter{client: client, name: name, models: models}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return a.name
}

// Models returns the list of supported models.
func (a *OpenAIAdapter) Models() []string {
	return append([]string(nil), a.models...)
}

// Generate sends a prompt through the chat completions API.
func (a *OpenAIAdapter) Generate(ctx context.Context, model string, prompt string, opts Options) (*Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if opts.System != "" {
		messages = append(messages, openai.SystemMessage(opts.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(opts.maxTokens()),
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, statusError(apiErr.StatusCode, fmt.Errorf("%s API error: %w", a.name, err))
		}
		return nil, fmt.Errorf("%s API error: %w", a.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &Error{Code: CodeParseError, Err: fmt.Errorf("%s returned no choices", a.name)}
	}

	usage := Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}.Normalize()
	return &Response{
		Content: resp.Choices[0].Message.Content,
		Metadata: map[string]string{
			"provider":      a.name,
			"model":         model,
			"finish_reason": string(resp.Choices[0].FinishReason),
		},
		Usage: &usage,
	}, nil
}
