package dispatch

import (
	"github.com/zen-systems/switchyard/pkg/adapter"
	"github.com/zen-systems/switchyard/pkg/config"
)

// priceTable prices calls per 1k tokens, keyed by provider then model, with
// an optional "default" model entry per provider.
type priceTable config.PricingConfig

func (p priceTable) lookup(provider, model string) (config.ModelPricing, bool) {
	models, ok := p[provider]
	if !ok {
		return config.ModelPricing{}, false
	}
	if entry, ok := models[model]; ok {
		return entry, true
	}
	entry, ok := models["default"]
	return entry, ok
}

// estimate returns a zero USD cost, not marked as an estimate, for unpriced
// models.
func (p priceTable) estimate(provider, model string, usage adapter.Usage) adapter.Cost {
	entry, ok := p.lookup(provider, model)
	if !ok {
		return adapter.Cost{Currency: "USD"}
	}
	return adapter.Cost{
		Currency: "USD",
		Amount: float64(usage.PromptTokens)/1000*entry.PromptPer1K +
			float64(usage.CompletionTokens)/1000*entry.CompletionPer1K,
		IsEstimate:   true,
		PricingModel: "per_1k_tokens",
	}
}
