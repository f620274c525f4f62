package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelCatalog manages model alias resolution, provider membership and the
// local/cloud split. Model IDs have the form "provider/model".
type ModelCatalog struct {
	Aliases        map[string]string   `yaml:"aliases"`
	Providers      map[string][]string `yaml:"providers"`
	LocalProviders []string            `yaml:"local_providers"`
}

// SplitModelID splits "provider/model" into its parts. IDs without a
// provider prefix return an empty provider.
func SplitModelID(id string) (provider, model string) {
	idx := strings.Index(id, "/")
	if idx <= 0 {
		return "", id
	}
	return id[:idx], id[idx+1:]
}

// LoadCatalog reads a model catalog from a YAML file.
func LoadCatalog(path string) (*ModelCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var catalog ModelCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}

	if catalog.Aliases == nil {
		catalog.Aliases = make(map[string]string)
	}
	if catalog.Providers == nil {
		catalog.Providers = make(map[string][]string)
	}
	if len(catalog.LocalProviders) == 0 {
		catalog.LocalProviders = []string{"ollama", "docker", "local"}
	}

	return &catalog, nil
}

// LoadCatalogWithFallback loads the catalog at path, falling back to the
// built-in catalog when the file does not exist.
func LoadCatalogWithFallback(path string) (*ModelCatalog, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadCatalog(path)
		}
	}
	return DefaultCatalog(), nil
}

// Resolve returns the canonical model ID for an alias.
// If the input is not an alias, it returns the input unchanged.
func (c *ModelCatalog) Resolve(modelOrAlias string) string {
	if c == nil || c.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := c.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// IsAlias returns true if the given string is a known alias.
func (c *ModelCatalog) IsAlias(name string) bool {
	if c == nil || c.Aliases == nil {
		return false
	}
	_, ok := c.Aliases[name]
	return ok
}

// IsLocal reports whether the model's provider is a local provider. Aliases
// are resolved first.
func (c *ModelCatalog) IsLocal(modelID string) bool {
	if c == nil {
		return false
	}
	provider, _ := SplitModelID(c.Resolve(modelID))
	if provider == "" {
		return false
	}
	for _, p := range c.LocalProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// ValidateModel checks if a model exists in its provider's list.
// Returns nil if valid, or an error describing the problem.
func (c *ModelCatalog) ValidateModel(modelID string) error {
	if c == nil || c.Providers == nil {
		return nil
	}

	modelID = c.Resolve(modelID)
	provider, _ := SplitModelID(modelID)
	models, ok := c.Providers[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q for model %q", provider, modelID)
	}

	for _, m := range models {
		if m == modelID {
			return nil
		}
	}

	return fmt.Errorf("model %q not in %s provider list", modelID, provider)
}

// ListAliases returns a copy of the aliases map.
func (c *ModelCatalog) ListAliases() map[string]string {
	if c == nil || c.Aliases == nil {
		return make(map[string]string)
	}
	result := make(map[string]string, len(c.Aliases))
	for k, v := range c.Aliases {
		result[k] = v
	}
	return result
}

// ListProviders returns a sorted list of provider names.
func (c *ModelCatalog) ListProviders() []string {
	if c == nil || c.Providers == nil {
		return nil
	}
	providers := make([]string, 0, len(c.Providers))
	for p := range c.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// GetProviderModels returns the models for a given provider.
func (c *ModelCatalog) GetProviderModels(provider string) []string {
	if c == nil || c.Providers == nil {
		return nil
	}
	return c.Providers[provider]
}

// GetProviderForModel returns the provider name for a canonical model.
func (c *ModelCatalog) GetProviderForModel(model string) string {
	if c == nil || c.Providers == nil {
		return ""
	}
	for provider, models := range c.Providers {
		for _, m := range models {
			if m == model {
				return provider
			}
		}
	}
	return ""
}

// ValidateRoutingTables checks that every model referenced by the tables is
// in the catalog and that every local list only names local models.
// Returns a slice of validation errors (empty if all valid).
func (c *ModelCatalog) ValidateRoutingTables(rt *RoutingTables) []error {
	if c == nil || rt == nil {
		return nil
	}

	var errs []error
	checkLocal := func(where, model string) {
		if err := c.ValidateModel(model); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
			return
		}
		if !c.IsLocal(model) {
			errs = append(errs, fmt.Errorf("%s: model %q is not local", where, model))
		}
	}
	checkCloud := func(where, model string) {
		if model == "" {
			return
		}
		if err := c.ValidateModel(model); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}

	for _, t := range sortedTaskTypes(rt) {
		for _, m := range rt.Capability[t].PreferredModels {
			checkLocal(fmt.Sprintf("capability %q", t), m)
		}
		route := rt.Cloud[t]
		checkCloud(fmt.Sprintf("cloud %q", t), route.Model)
		checkCloud(fmt.Sprintf("cloud %q high_complexity", t), route.HighComplexity)
	}
	for _, m := range rt.SecondaryLocalModels {
		checkLocal("secondary_local_models", m)
	}
	checkLocal("flagship_local_model", rt.FlagshipLocalModel)
	checkLocal("default_local_model", rt.DefaultLocalModel)
	for _, m := range rt.CloudFallbackModels {
		checkCloud("cloud_fallback_models", m)
	}

	return errs
}

// DefaultCatalog returns the built-in model catalog.
func DefaultCatalog() *ModelCatalog {
	return &ModelCatalog{
		Aliases: map[string]string{
			"fast":       "ollama/llama3.2:3b",
			"local":      DefaultLocalModel,
			"local-big":  FlagshipLocalModel,
			"local-code": "docker/ai/qwen2.5-coder:7b",
			"reason":     "ollama/deepseek-r1:14b",
			"quality":    DefaultCloudModel,
			"deep":       FlagshipGenerativeCloud,
			"thinking":   "openai/gpt-5.2-thinking",
			"math":       FlagshipReasoningCloud,
			"research":   "google/gemini-2.0-pro",
		},
		Providers: map[string][]string{
			"ollama": {
				"ollama/llama3.2:3b", DefaultLocalModel, FlagshipLocalModel,
				"ollama/qwen2.5-coder:32b", "ollama/deepseek-r1:14b",
			},
			"docker":    {"docker/ai/qwen2.5-coder:7b", "docker/ai/llama3.2:3b"},
			"anthropic": {DefaultCloudModel, FlagshipGenerativeCloud},
			"openai":    {"openai/gpt-5.2-instant", "openai/gpt-5.2-thinking", FlagshipReasoningCloud},
			"google":    {"google/gemini-2.0-pro"},
		},
		LocalProviders: []string{"ollama", "docker", "local"},
	}
}
