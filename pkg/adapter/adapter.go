// Package adapter invokes models behind a uniform interface. Model ids are
// "provider/model"; each Adapter serves one provider.
package adapter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zen-systems/switchyard/pkg/config"
)

// Adapter defines the interface for model provider adapters.
type Adapter interface {
	// Generate sends a prompt to the provider-local model name.
	Generate(ctx context.Context, model string, prompt string, opts Options) (*Response, error)

	// Name returns the provider this adapter serves.
	Name() string

	// Models returns the provider-local names it knows about.
	Models() []string
}

// SplitModelID separates "provider/model". The model half keeps any further
// slashes, so "docker/ai/llama3.2:3b" yields ("docker", "ai/llama3.2:3b").
func SplitModelID(id string) (provider, model string) {
	return config.SplitModelID(id)
}

// Set maps provider names to adapters.
type Set struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewSet creates a set holding the given adapters.
func NewSet(adapters ...Adapter) *Set {
	s := &Set{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		s.Register(a)
	}
	return s
}

// Register adds or replaces the adapter for a.Name().
func (s *Set) Register(a Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[a.Name()] = a
}

// Get returns the adapter for a provider.
func (s *Set) Get(provider string) (Adapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[provider]
	return a, ok
}

// Providers returns the registered provider names, sorted.
func (s *Set) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.adapters))
	for name := range s.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve finds the adapter for a full model id and returns it with the
// provider-local model name.
func (s *Set) Resolve(modelID string) (Adapter, string, error) {
	provider, model := SplitModelID(modelID)
	if provider == "" {
		return nil, "", fmt.Errorf("model %q has no provider prefix", modelID)
	}
	a, ok := s.Get(provider)
	if !ok {
		return nil, "", fmt.Errorf("adapter %s not configured", provider)
	}
	return a, model, nil
}

// FromConfig builds every adapter the configuration can support. Providers
// that fail to construct are reported but do not stop the others.
func FromConfig(cfg *config.Config) (*Set, []error) {
	s := NewSet()
	var errs []error

	if cfg.HasAdapter("anthropic") {
		if a, err := NewAnthropicAdapter(cfg.AnthropicAPIKey); err != nil {
			errs = append(errs, err)
		} else {
			s.Register(a)
		}
	}
	if cfg.HasAdapter("openai") {
		if a, err := NewOpenAIAdapter(cfg.OpenAIAPIKey); err != nil {
			errs = append(errs, err)
		} else {
			s.Register(a)
		}
	}
	if cfg.HasAdapter("google") {
		if a, err := NewGoogleAdapter(cfg.GoogleAPIKey); err != nil {
			errs = append(errs, err)
		} else {
			s.Register(a)
		}
	}

	var catalogModels func(string) []string
	if cfg.Catalog != nil {
		catalogModels = cfg.Catalog.GetProviderModels
	}
	local := map[string]string{
		"ollama": cfg.OllamaHost,
		"docker": cfg.DockerModelRunnerURL,
	}
	for _, name := range []string{"ollama", "docker"} {
		if !cfg.HasAdapter(name) {
			continue
		}
		var models []string
		if catalogModels != nil {
			for _, id := range catalogModels(name) {
				_, m := SplitModelID(id)
				models = append(models, m)
			}
		}
		a, err := NewLocalAdapter(name, local[name], models)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Register(a)
	}

	return s, errs
}
