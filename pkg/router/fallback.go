package router

import (
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/privacy"
)

// FallbackBuilder produces the ordered list of alternates to try when the
// primary model fails.
type FallbackBuilder struct {
	tables   *config.RoutingTables
	registry ModelRegistry
}

// NewFallbackBuilder creates a builder. The registry filters local entries
// when privacy requires local processing.
func NewFallbackBuilder(tables *config.RoutingTables, registry ModelRegistry) *FallbackBuilder {
	return &FallbackBuilder{tables: tables, registry: registry}
}

// Build returns at most MaxFallbacks unique models, never including primary.
// Cloud models are only added when privacy allows them.
func (b *FallbackBuilder) Build(primary string, capability CapabilityAssessment, override OverrideEvaluation, p privacy.Analysis) []string {
	chain := make([]string, 0, MaxFallbacks)
	seen := map[string]bool{primary: true}

	add := func(model string) bool {
		if len(chain) >= MaxFallbacks {
			return false
		}
		if model == "" || seen[model] {
			return false
		}
		if p.RequiresLocal && !b.registry.IsLocal(model) {
			return false
		}
		seen[model] = true
		chain = append(chain, model)
		return true
	}

	for _, m := range capability.PreferredModels {
		add(m)
	}
	for _, m := range b.tables.SecondaryLocalModels {
		add(m)
	}

	if !p.RequiresLocal {
		add(override.RecommendedModel)
		for _, m := range b.tables.CloudFallbackModels {
			if add(m) {
				break
			}
		}
	}

	return chain
}
