package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/switchyard/pkg/task"
)

// RoutingTables holds the lookup tables that drive the routing decision.
// Tables are treated as immutable once handed to a constructor.
type RoutingTables struct {
	Privacy              PrivacyTables                 `yaml:"privacy"`
	Capability           map[task.Type]CapabilityEntry `yaml:"capability"`
	DefaultCapability    CapabilityEntry               `yaml:"default_capability"`
	Cloud                map[task.Type]CloudRoute      `yaml:"cloud"`
	DefaultCloud         CloudRoute                    `yaml:"default_cloud"`
	CreativityMarkers    []string                      `yaml:"creativity_markers,omitempty"`
	SmallModelMarkers    []string                      `yaml:"small_model_markers,omitempty"`
	LocalMarkers         []string                      `yaml:"local_markers,omitempty"`
	FlagshipLocalModel   string                        `yaml:"flagship_local_model,omitempty"`
	DefaultLocalModel    string                        `yaml:"default_local_model,omitempty"`
	SecondaryLocalModels []string                      `yaml:"secondary_local_models,omitempty"`
	CloudFallbackModels  []string                      `yaml:"cloud_fallback_models,omitempty"`
	Limitations          LimitationTables              `yaml:"limitations,omitempty"`
}

// PrivacyTables configures the privacy analyzer.
type PrivacyTables struct {
	Keywords    []string    `yaml:"keywords"`
	StrictTypes []task.Type `yaml:"strict_types"`
	MediumTypes []task.Type `yaml:"medium_types"`
}

// CapabilityEntry is the base local capability for a task type.
type CapabilityEntry struct {
	BaseScore       float64  `yaml:"base_score"`
	PreferredModels []string `yaml:"preferred_models"`
}

// CloudRoute is the cloud model recommended for a task type. HighComplexity,
// when set, replaces Model for high-complexity tasks.
type CloudRoute struct {
	Model          string `yaml:"model"`
	HighComplexity string `yaml:"high_complexity,omitempty"`
}

// LimitationTables are static explanation annotations.
type LimitationTables struct {
	ByTaskType    map[task.Type][]string        `yaml:"by_task_type,omitempty"`
	ByComplexity  map[task.Level][]string       `yaml:"by_complexity,omitempty"`
	ByUncertainty map[task.Uncertainty][]string `yaml:"by_uncertainty,omitempty"`
}

const (
	FlagshipGenerativeCloud = "anthropic/claude-opus-4-20250514"
	FlagshipReasoningCloud  = "openai/gpt-5.2-pro"
	DefaultCloudModel       = "anthropic/claude-sonnet-4-20250514"

	FlagshipLocalModel = "ollama/llama3.3:70b"
	DefaultLocalModel  = "ollama/llama3.1:8b"
)

// LoadRoutingTables reads routing tables from a YAML file. Missing sections
// are filled from the defaults.
func LoadRoutingTables(path string) (*RoutingTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tables RoutingTables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, err
	}

	applyRoutingDefaults(&tables)
	return &tables, nil
}

// DefaultRoutingTables returns the built-in routing tables.
func DefaultRoutingTables() *RoutingTables {
	general := []string{DefaultLocalModel, "ollama/llama3.2:3b"}
	sensitive := []string{DefaultLocalModel, FlagshipLocalModel}

	tables := &RoutingTables{
		Privacy: PrivacyTables{
			Keywords: []string{
				"private", "password", "api key", "apikey", "secret", "confidential",
				"credit card", "ssn", "social security", "bank account", "medical",
				"diagnosis", "salary",
			},
			StrictTypes: []task.Type{task.Personal, task.Journal, task.Health, task.Finance},
			MediumTypes: []task.Type{task.Code, task.Debug, task.Analyze},
		},
		Capability: map[task.Type]CapabilityEntry{
			task.Code:       {BaseScore: 0.8, PreferredModels: []string{"docker/ai/qwen2.5-coder:7b", "ollama/qwen2.5-coder:32b", "ollama/llama3.2:3b"}},
			task.Debug:      {BaseScore: 0.75, PreferredModels: []string{"ollama/qwen2.5-coder:32b", "docker/ai/qwen2.5-coder:7b"}},
			task.Write:      {BaseScore: 0.6, PreferredModels: []string{DefaultLocalModel, FlagshipLocalModel}},
			task.Creative:   {BaseScore: 0.5, PreferredModels: []string{FlagshipLocalModel, DefaultLocalModel}},
			task.Research:   {BaseScore: 0.4, PreferredModels: []string{FlagshipLocalModel, DefaultLocalModel}},
			task.Analyze:    {BaseScore: 0.6, PreferredModels: []string{"ollama/deepseek-r1:14b", FlagshipLocalModel}},
			task.Explain:    {BaseScore: 0.7, PreferredModels: []string{DefaultLocalModel, "ollama/deepseek-r1:14b"}},
			task.QuickQuery: {BaseScore: 0.9, PreferredModels: []string{"ollama/llama3.2:3b", DefaultLocalModel}},
			task.Plan:       {BaseScore: 0.65, PreferredModels: []string{DefaultLocalModel, "ollama/deepseek-r1:14b"}},
			task.Summarize:  {BaseScore: 0.75, PreferredModels: []string{DefaultLocalModel, "ollama/llama3.2:3b"}},
			task.Personal:   {BaseScore: 0.7, PreferredModels: sensitive},
			task.Journal:    {BaseScore: 0.7, PreferredModels: sensitive},
			task.Health:     {BaseScore: 0.7, PreferredModels: sensitive},
			task.Finance:    {BaseScore: 0.7, PreferredModels: sensitive},
		},
		DefaultCapability: CapabilityEntry{BaseScore: 0.5, PreferredModels: general},
		Cloud: map[task.Type]CloudRoute{
			task.Code:       {Model: DefaultCloudModel},
			task.Debug:      {Model: DefaultCloudModel, HighComplexity: FlagshipGenerativeCloud},
			task.Write:      {Model: "openai/gpt-5.2-thinking", HighComplexity: FlagshipGenerativeCloud},
			task.Creative:   {Model: "openai/gpt-5.2-thinking", HighComplexity: FlagshipGenerativeCloud},
			task.Research:   {Model: "google/gemini-2.0-pro"},
			task.Analyze:    {Model: "openai/gpt-5.2-thinking", HighComplexity: FlagshipReasoningCloud},
			task.Explain:    {Model: DefaultCloudModel, HighComplexity: FlagshipReasoningCloud},
			task.QuickQuery: {Model: "openai/gpt-5.2-instant"},
			task.Plan:       {Model: "openai/gpt-5.2-thinking"},
			task.Summarize:  {Model: "openai/gpt-5.2-thinking"},
		},
		DefaultCloud:         CloudRoute{Model: DefaultCloudModel},
		CreativityMarkers:    []string{"creative", "story", "poem", "fiction", "brainstorm", "narrative", "lyrics"},
		SmallModelMarkers:    []string{"1b", "3b", "mini", "small"},
		LocalMarkers:         []string{"ollama/", "docker/", "local/"},
		FlagshipLocalModel:   FlagshipLocalModel,
		DefaultLocalModel:    DefaultLocalModel,
		SecondaryLocalModels: []string{DefaultLocalModel, "ollama/llama3.2:3b", "docker/ai/llama3.2:3b"},
		CloudFallbackModels:  []string{DefaultCloudModel, "openai/gpt-5.2-instant", "google/gemini-2.0-pro"},
		Limitations: LimitationTables{
			ByTaskType: map[task.Type][]string{
				task.Research: {"local models lack live web knowledge"},
				task.Creative: {"smaller local models produce less varied prose"},
				task.Write:    {"long-form drafts may need a second pass"},
			},
			ByComplexity: map[task.Level][]string{
				task.High: {"complex multi-step reasoning may exceed local context windows"},
			},
			ByUncertainty: map[task.Uncertainty][]string{
				task.UncertaintyHigh:     {"ambiguous request; answer may need clarification"},
				task.UncertaintyVeryHigh: {"highly ambiguous request; local model may misread intent"},
			},
		},
	}

	applyRoutingDefaults(tables)
	return tables
}

// CapabilityFor returns the capability entry for t. The lookup is total.
func (rt *RoutingTables) CapabilityFor(t task.Type) CapabilityEntry {
	if entry, ok := rt.Capability[t.OrDefault()]; ok {
		return entry
	}
	return rt.DefaultCapability
}

// CloudFor returns the cloud route for t. The lookup is total.
func (rt *RoutingTables) CloudFor(t task.Type) CloudRoute {
	if route, ok := rt.Cloud[t.OrDefault()]; ok {
		return route
	}
	return rt.DefaultCloud
}

func applyRoutingDefaults(rt *RoutingTables) {
	if rt == nil {
		return
	}
	if rt.DefaultLocalModel == "" {
		rt.DefaultLocalModel = DefaultLocalModel
	}
	if rt.FlagshipLocalModel == "" {
		rt.FlagshipLocalModel = FlagshipLocalModel
	}
	if len(rt.LocalMarkers) == 0 {
		rt.LocalMarkers = []string{"ollama/", "docker/", "local/"}
	}
	if len(rt.SmallModelMarkers) == 0 {
		rt.SmallModelMarkers = []string{"1b", "3b", "mini", "small"}
	}
	if len(rt.CreativityMarkers) == 0 {
		rt.CreativityMarkers = []string{"creative", "story", "poem", "fiction", "brainstorm"}
	}
	if rt.DefaultCapability.BaseScore == 0 {
		rt.DefaultCapability.BaseScore = 0.5
	}
	if len(rt.DefaultCapability.PreferredModels) == 0 {
		rt.DefaultCapability.PreferredModels = []string{rt.DefaultLocalModel}
	}
	if rt.DefaultCloud.Model == "" {
		rt.DefaultCloud.Model = DefaultCloudModel
	}

	// Every task type gets an explicit entry so lookups never depend on a
	// missing key.
	if rt.Capability == nil {
		rt.Capability = make(map[task.Type]CapabilityEntry)
	}
	if rt.Cloud == nil {
		rt.Cloud = make(map[task.Type]CloudRoute)
	}
	for _, t := range task.AllTaskTypes() {
		if _, ok := rt.Capability[t]; !ok {
			rt.Capability[t] = rt.DefaultCapability
		}
		if _, ok := rt.Cloud[t]; !ok {
			rt.Cloud[t] = rt.DefaultCloud
		}
	}
}

// sortedTaskTypes returns the task types present in either table, in
// AllTaskTypes order.
func sortedTaskTypes(rt *RoutingTables) []task.Type {
	var out []task.Type
	for _, t := range task.AllTaskTypes() {
		_, inCap := rt.Capability[t]
		_, inCloud := rt.Cloud[t]
		if inCap || inCloud {
			out = append(out, t)
		}
	}
	return out
}
