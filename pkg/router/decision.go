package router

// Strategy names the branch of the composer that produced a decision.
type Strategy string

const (
	StrategyPrivacyLocalOnly   Strategy = "privacy_local_only"
	StrategyCloudOverride      Strategy = "cloud_override"
	StrategyLocalFirstCapable  Strategy = "local_first_capable"
	StrategyLocalFirstFallback Strategy = "local_first_fallback"
)

// MaxFallbacks bounds the fallback chain.
const MaxFallbacks = 5

// CapabilityLevel buckets a capability score.
type CapabilityLevel string

const (
	CapabilityLow    CapabilityLevel = "low"
	CapabilityMedium CapabilityLevel = "medium"
	CapabilityHigh   CapabilityLevel = "high"
)

// CapabilityAssessment estimates how well a local model can serve the task.
// Score and Level include the privacy floor; BaseScore and BaseLevel do not.
type CapabilityAssessment struct {
	Score            float64         `json:"score"`
	Level            CapabilityLevel `json:"level"`
	BaseScore        float64         `json:"base_score"`
	BaseLevel        CapabilityLevel `json:"base_level"`
	RecommendedModel string          `json:"recommended_model"`
	PreferredModels  []string        `json:"preferred_models"`
	Limitations      []string        `json:"limitations,omitempty"`
}

// OverrideEvaluation estimates how strongly cloud processing is warranted.
// RawScore is the unclamped sum of the rule increments.
type OverrideEvaluation struct {
	ShouldOverride   bool     `json:"should_override"`
	Score            float64  `json:"score"`
	RawScore         float64  `json:"raw_score"`
	Confidence       float64  `json:"confidence"`
	Reasons          []string `json:"reasons,omitempty"`
	RecommendedModel string   `json:"recommended_model,omitempty"`
}

// Baseline is the selection the composer starts from.
type Baseline struct {
	Model      string  `json:"model"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// DecisionMetadata records the candidates that fed a decision.
type DecisionMetadata struct {
	OriginalModel    string  `json:"original_model"`
	LocalCandidate   string  `json:"local_candidate"`
	CloudCandidate   string  `json:"cloud_candidate,omitempty"`
	PrivacyProtected bool    `json:"privacy_protected"`
	LocalScore       float64 `json:"local_score"`
}

// RoutingDecision is the router's output. It is built once and not mutated;
// it carries no timestamps or ids so identical inputs encode identically.
type RoutingDecision struct {
	Model      string           `json:"model"`
	Reason     string           `json:"reason"`
	Confidence float64          `json:"confidence"`
	Strategy   Strategy         `json:"strategy"`
	Fallbacks  []string         `json:"fallbacks"`
	Metadata   DecisionMetadata `json:"metadata"`
}

// Targets returns the primary model followed by the fallbacks.
func (d RoutingDecision) Targets() []string {
	out := make([]string, 0, 1+len(d.Fallbacks))
	out = append(out, d.Model)
	return append(out, d.Fallbacks...)
}

// unflooredLevel is the level before the privacy floor. Assessments built
// without BaseLevel report Level.
func (a CapabilityAssessment) unflooredLevel() CapabilityLevel {
	if a.BaseLevel != "" {
		return a.BaseLevel
	}
	return a.Level
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
