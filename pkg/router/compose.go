package router

import (
	"fmt"
	"math"

	"github.com/zen-systems/switchyard/pkg/privacy"
	"github.com/zen-systems/switchyard/pkg/task"
)

const (
	capableScore       = 0.7
	fallbackConfidence = 0.3
)

// BaselineFor derives the starting selection when the caller supplies none.
func BaselineFor(c task.Classification, capability CapabilityAssessment) Baseline {
	var confidence float64
	switch c.Uncertainty.Level.OrDefault() {
	case task.UncertaintyLow:
		confidence = 0.8
	case task.UncertaintyHigh:
		confidence = 0.55
	case task.UncertaintyVeryHigh:
		confidence = 0.4
	default:
		confidence = 0.7
	}
	return Baseline{
		Model:      capability.RecommendedModel,
		Reason:     fmt.Sprintf("%s task, %s complexity", c.Type.OrDefault(), c.Complexity.Level.OrDefault()),
		Confidence: confidence,
	}
}

// Composer combines the evaluations into a decision. Privacy wins over every
// other signal.
type Composer struct {
	fallbacks *FallbackBuilder
}

// NewComposer creates a composer that attaches fallbacks from fb.
func NewComposer(fb *FallbackBuilder) *Composer {
	return &Composer{fallbacks: fb}
}

// Compose picks the first matching strategy. It is total over well-typed
// input.
func (c *Composer) Compose(baseline Baseline, capability CapabilityAssessment, override OverrideEvaluation, p privacy.Analysis) RoutingDecision {
	var (
		model      string
		strategy   Strategy
		confidence float64
		suffix     string
	)

	switch {
	case p.RequiresLocal:
		strategy = StrategyPrivacyLocalOnly
		model = capability.RecommendedModel
		confidence = math.Max(baseline.Confidence, privacyFloor)
		suffix = "privacy requires local processing"
	case override.ShouldOverride && capability.Level != CapabilityHigh && override.RecommendedModel != "":
		strategy = StrategyCloudOverride
		model = override.RecommendedModel
		confidence = math.Min(baseline.Confidence+0.1, 1)
		suffix = "cloud override for stronger capability"
	case capability.Level == CapabilityHigh || capability.Score >= capableScore:
		strategy = StrategyLocalFirstCapable
		model = capability.RecommendedModel
		confidence = math.Min(baseline.Confidence+0.05, 1)
		suffix = "local model is capable"
	default:
		strategy = StrategyLocalFirstFallback
		model = capability.RecommendedModel
		confidence = math.Max(baseline.Confidence-0.1, fallbackConfidence)
		suffix = "local first with fallbacks"
	}

	return c.build(baseline, model, strategy, confidence, suffix, capability, override, p)
}

func (c *Composer) build(baseline Baseline, model string, strategy Strategy, confidence float64, suffix string, capability CapabilityAssessment, override OverrideEvaluation, p privacy.Analysis) RoutingDecision {
	return RoutingDecision{
		Model:      model,
		Reason:     baseline.Reason + "; " + suffix,
		Confidence: clamp01(confidence),
		Strategy:   strategy,
		Fallbacks:  c.fallbacks.Build(model, capability, override, p),
		Metadata: DecisionMetadata{
			OriginalModel:    baseline.Model,
			LocalCandidate:   capability.RecommendedModel,
			CloudCandidate:   override.RecommendedModel,
			PrivacyProtected: p.RequiresLocal,
			LocalScore:       capability.Score,
		},
	}
}

// privacyOnly re-derives a decision through the privacy branch with a model
// the registry confirms is local.
func (c *Composer) privacyOnly(baseline Baseline, capability CapabilityAssessment, override OverrideEvaluation, p privacy.Analysis, localModel string) RoutingDecision {
	p.RequiresLocal = true
	capability.RecommendedModel = localModel
	return c.build(baseline, localModel, StrategyPrivacyLocalOnly,
		math.Max(baseline.Confidence, privacyFloor), "privacy requires local processing", capability, override, p)
}
