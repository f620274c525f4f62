package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/privacy"
	"github.com/zen-systems/switchyard/pkg/task"
)

type fixedHints map[task.Type]string

func (h fixedHints) PreferredLocalModel(t task.Type) (string, bool) {
	m, ok := h[t]
	return m, ok
}

func classify(t task.Type, complexity task.Level, uncertainty task.Uncertainty) task.Classification {
	return task.Classification{
		Type:        t,
		Complexity:  task.Complexity{Level: complexity},
		Uncertainty: task.UncertaintyInfo{Level: uncertainty},
	}
}

func TestCapabilityEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		class     task.Classification
		cognitive task.CognitiveState
		privacy   privacy.Analysis
		wantScore float64
		wantLevel CapabilityLevel
		wantModel string
	}{
		{
			name:      "code defaults",
			class:     classify(task.Code, task.Medium, task.UncertaintyMedium),
			wantScore: 0.8,
			wantLevel: CapabilityHigh,
			wantModel: "docker/ai/qwen2.5-coder:7b",
		},
		{
			name:      "high complexity picks the largest model",
			class:     classify(task.Code, task.High, task.UncertaintyMedium),
			wantScore: 0.56,
			wantLevel: CapabilityMedium,
			wantModel: "ollama/qwen2.5-coder:32b",
		},
		{
			name:      "quick query clamps and picks the smallest model",
			class:     classify(task.QuickQuery, task.Low, task.UncertaintyLow),
			wantScore: 1,
			wantLevel: CapabilityHigh,
			wantModel: "ollama/llama3.2:3b",
		},
		{
			name:      "uncertain research is weak locally",
			class:     classify(task.Research, task.High, task.UncertaintyVeryHigh),
			wantScore: 0.224,
			wantLevel: CapabilityLow,
			wantModel: config.FlagshipLocalModel,
		},
		{
			name:      "privacy floor",
			class:     classify(task.Research, task.High, task.UncertaintyVeryHigh),
			privacy:   privacy.Analysis{RequiresLocal: true},
			wantScore: 0.8,
			wantLevel: CapabilityHigh,
			wantModel: config.FlagshipLocalModel,
		},
		{
			name:      "hyperfocus boosts debugging",
			class:     classify(task.Debug, task.Low, task.UncertaintyLow),
			cognitive: task.CognitiveState{HyperfocusPotential: true},
			wantScore: 0.99,
			wantLevel: CapabilityHigh,
			wantModel: "ollama/qwen2.5-coder:32b",
		},
		{
			name:      "hyperfocus prefers the flagship local model",
			class:     classify(task.Write, task.Medium, task.UncertaintyMedium),
			cognitive: task.CognitiveState{HyperfocusPotential: true},
			wantScore: 0.6,
			wantLevel: CapabilityMedium,
			wantModel: config.FlagshipLocalModel,
		},
		{
			name:      "empty classification uses the general entry",
			wantScore: 0.5,
			wantLevel: CapabilityMedium,
			wantModel: config.DefaultLocalModel,
		},
	}

	e := NewCapabilityEvaluator(config.DefaultRoutingTables(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.class, tt.cognitive, tt.privacy)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.wantModel, got.RecommendedModel)
		})
	}
}

func TestCapabilityScoreClamped(t *testing.T) {
	tables := config.DefaultRoutingTables()
	tables.Capability[task.Code] = config.CapabilityEntry{BaseScore: 5, PreferredModels: []string{"ollama/a:7b"}}
	tables.Capability[task.Debug] = config.CapabilityEntry{BaseScore: -1, PreferredModels: []string{"ollama/a:7b"}}
	e := NewCapabilityEvaluator(tables, nil)

	levels := []task.Level{task.Low, task.Medium, task.High}
	uncertainties := []task.Uncertainty{task.UncertaintyLow, task.UncertaintyVeryHigh}
	for _, tt := range task.AllTaskTypes() {
		for _, l := range levels {
			for _, u := range uncertainties {
				for _, hf := range []bool{false, true} {
					got := e.Evaluate(classify(tt, l, u), task.CognitiveState{HyperfocusPotential: hf}, privacy.Analysis{})
					assert.GreaterOrEqual(t, got.Score, 0.0, "%s/%s/%s", tt, l, u)
					assert.LessOrEqual(t, got.Score, 1.0, "%s/%s/%s", tt, l, u)
					assert.NotEmpty(t, got.RecommendedModel)
				}
			}
		}
	}
}

func TestCapabilityHintsReorderLocalModels(t *testing.T) {
	tables := config.DefaultRoutingTables()
	class := classify(task.Code, task.Medium, task.UncertaintyMedium)

	hinted := NewCapabilityEvaluator(tables, fixedHints{task.Code: "ollama/llama3.2:3b"}).
		Evaluate(class, task.CognitiveState{}, privacy.Analysis{})
	assert.Equal(t, "ollama/llama3.2:3b", hinted.RecommendedModel)
	assert.Equal(t, []string{"ollama/llama3.2:3b", "docker/ai/qwen2.5-coder:7b", "ollama/qwen2.5-coder:32b"}, hinted.PreferredModels)
	assert.InDelta(t, 0.8, hinted.Score, 1e-9)

	unknown := NewCapabilityEvaluator(tables, fixedHints{task.Code: "anthropic/claude-opus-4-20250514"}).
		Evaluate(class, task.CognitiveState{}, privacy.Analysis{})
	assert.Equal(t, "docker/ai/qwen2.5-coder:7b", unknown.RecommendedModel)

	// The table itself is untouched.
	assert.Equal(t, "docker/ai/qwen2.5-coder:7b", tables.Capability[task.Code].PreferredModels[0])
}

func TestCapabilityLimitations(t *testing.T) {
	e := NewCapabilityEvaluator(config.DefaultRoutingTables(), nil)
	got := e.Evaluate(classify(task.Research, task.High, task.UncertaintyVeryHigh), task.CognitiveState{}, privacy.Analysis{})
	assert.Len(t, got.Limitations, 3)

	got = e.Evaluate(classify(task.Code, task.Medium, task.UncertaintyLow), task.CognitiveState{}, privacy.Analysis{})
	assert.Empty(t, got.Limitations)
}

func TestParamCount(t *testing.T) {
	assert.Equal(t, 70.0, paramCount("ollama/llama3.3:70b"))
	assert.Equal(t, 7.0, paramCount("docker/ai/qwen2.5-coder:7b"))
	assert.Equal(t, 1.5, paramCount("ollama/qwen:1.5b"))
	assert.Equal(t, 0.0, paramCount("ollama/mistral"))
	assert.Equal(t, "ollama/mistral", largest([]string{"ollama/mistral", "ollama/phi"}))
}
