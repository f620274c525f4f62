package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zen-systems/switchyard/pkg/config"
)

func TestValidate(t *testing.T) {
	v := NewValidator(MarkerRegistry{Markers: []string{"ollama/", "docker/", "local/"}})

	tests := []struct {
		name          string
		decision      RoutingDecision
		requiresLocal bool
		wantValid     bool
		wantErrors    int
		wantWarnings  int
	}{
		{
			name: "local decision under privacy",
			decision: RoutingDecision{
				Model: "ollama/llama3.1:8b", Confidence: 0.8, Strategy: StrategyPrivacyLocalOnly,
				Fallbacks: []string{"docker/ai/llama3.2:3b"},
			},
			requiresLocal: true,
			wantValid:     true,
		},
		{
			name: "cloud model under privacy",
			decision: RoutingDecision{
				Model: config.DefaultCloudModel, Confidence: 0.8, Strategy: StrategyPrivacyLocalOnly,
				Fallbacks: []string{"ollama/llama3.1:8b"},
			},
			requiresLocal: true,
			wantErrors:    1,
		},
		{
			name: "cloud fallback under privacy",
			decision: RoutingDecision{
				Model: "ollama/llama3.1:8b", Confidence: 0.8, Strategy: StrategyPrivacyLocalOnly,
				Fallbacks: []string{"ollama/llama3.2:3b", config.DefaultCloudModel},
			},
			requiresLocal: true,
			wantErrors:    1,
		},
		{
			name: "cloud model is fine without privacy",
			decision: RoutingDecision{
				Model: config.DefaultCloudModel, Confidence: 0.8, Strategy: StrategyCloudOverride,
				Fallbacks: []string{"ollama/llama3.1:8b"},
			},
			wantValid: true,
		},
		{
			name: "no local fallback warns",
			decision: RoutingDecision{
				Model: config.DefaultCloudModel, Confidence: 0.8, Strategy: StrategyCloudOverride,
				Fallbacks: []string{"openai/gpt-5.2-instant"},
			},
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name: "low confidence outside the fallback strategy warns",
			decision: RoutingDecision{
				Model: "ollama/llama3.1:8b", Confidence: 0.2, Strategy: StrategyLocalFirstCapable,
				Fallbacks: []string{"ollama/llama3.2:3b"},
			},
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name: "low confidence fallback strategy is expected",
			decision: RoutingDecision{
				Model: "ollama/llama3.1:8b", Confidence: 0.2, Strategy: StrategyLocalFirstFallback,
				Fallbacks: []string{"ollama/llama3.2:3b"},
			},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.decision, tt.requiresLocal)
			assert.Equal(t, tt.wantValid, got.Valid)
			assert.Len(t, got.Errors, tt.wantErrors)
			assert.Len(t, got.Warnings, tt.wantWarnings)
		})
	}
}

func TestValidateWithCatalogRegistry(t *testing.T) {
	v := NewValidator(config.DefaultCatalog())
	d := RoutingDecision{Model: "local-big", Strategy: StrategyPrivacyLocalOnly, Confidence: 0.8}

	got := v.Validate(d, true)
	assert.True(t, got.Valid)
	assert.Equal(t, []string{"no local model in fallback chain"}, got.Warnings)
}
