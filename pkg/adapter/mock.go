package adapter

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter returns deterministic responses for local runs and tests. It
// can stand in for any provider name.
type MockAdapter struct {
	name            string
	responses       map[string]string
	defaultResponse string
	Usage           *Usage

	mu     sync.Mutex
	errs   map[string][]error
	calls  []string
	models []string
}

// NewMockAdapter creates a mock adapter serving the given provider name.
func NewMockAdapter(name string) *MockAdapter {
	if name == "" {
		name = "mock"
	}
	return &MockAdapter{
		name:            name,
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
		errs:            make(map[string][]error),
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined responses
// keyed by prompt.
func NewMockAdapterWithResponses(name string, responses map[string]string, defaultResponse string) *MockAdapter {
	a := NewMockAdapter(name)
	if defaultResponse != "" {
		a.defaultResponse = defaultResponse
	}
	for k, v := range responses {
		a.responses[k] = v
	}
	return a
}

// FailWith queues errors returned by successive calls for model. Once the
// queue drains, calls succeed.
func (a *MockAdapter) FailWith(model string, errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs[model] = append(a.errs[model], errs...)
	a.models = appendUnique(a.models, model)
}

// Calls returns the models invoked so far, in order.
func (a *MockAdapter) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return a.name
}

// Models returns the models seen so far.
func (a *MockAdapter) Models() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.models) == 0 {
		return []string{"mock-1"}
	}
	return append([]string(nil), a.models...)
}

// Generate returns a deterministic response for the prompt.
func (a *MockAdapter) Generate(ctx context.Context, model string, prompt string, _ Options) (*Response, error) {
	if model == "" {
		model = "mock-1"
	}

	a.mu.Lock()
	a.calls = append(a.calls, model)
	a.models = appendUnique(a.models, model)
	var err error
	if queue := a.errs[model]; len(queue) > 0 {
		err = queue[0]
		a.errs[model] = queue[1:]
	}
	a.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}

	content, ok := a.responses[prompt]
	if !ok {
		content = fmt.Sprintf("%s\n%s", a.defaultResponse, prompt)
	}
	return &Response{
		Content:  content,
		Metadata: map[string]string{"provider": a.name, "model": model},
		Usage:    a.Usage,
	}, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
