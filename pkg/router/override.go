package router

import (
	"strings"

	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/task"
)

// Override rule increments.
const (
	complexityGapBonus   = 0.3
	creativeWritingBonus = 0.2
	researchBonus        = 0.4
	ambiguityBonus       = 0.2
	peakStateBonus       = 0.1
	cloudPreferenceBonus = 0.5
	lateHoursPenalty     = -0.5

	overrideThreshold = 0.5
)

// OverrideEvaluator scores whether a task should leave the machine.
type OverrideEvaluator struct {
	tables *config.RoutingTables
}

// NewOverrideEvaluator creates an evaluator over the given tables.
func NewOverrideEvaluator(tables *config.RoutingTables) *OverrideEvaluator {
	return &OverrideEvaluator{tables: tables}
}

// Evaluate sums the rule increments. The threshold is applied to the raw sum;
// Score and Confidence are clamped to [0,1].
func (e *OverrideEvaluator) Evaluate(c task.Classification, cs task.CognitiveState, capability CapabilityAssessment, taskText string, profile task.UserProfile, tc task.TimeContext) OverrideEvaluation {
	taskType := c.Type.OrDefault()
	complexity := c.Complexity.Level.OrDefault()

	var raw float64
	var reasons []string
	add := func(delta float64, reason string) {
		raw += delta
		reasons = append(reasons, reason)
	}

	// The gap is judged on the local model itself; the privacy floor only
	// constrains where the task may run.
	if complexity == task.High && capability.unflooredLevel() == CapabilityLow {
		add(complexityGapBonus, "high complexity exceeds local capability")
	}
	if taskType == task.Write && e.needsCreativity(c, taskText) {
		add(creativeWritingBonus, "creative writing benefits from larger models")
	}
	if taskType == task.Research {
		add(researchBonus, "research favors broader knowledge")
	}
	if c.Uncertainty.Level == task.UncertaintyVeryHigh {
		add(ambiguityBonus, "very high uncertainty")
	}
	if cs.CapacityLevel == task.High && cs.TaskAlignmentLevel == task.High {
		add(peakStateBonus, "high capacity and alignment")
	}
	if profile.PreferCloud {
		add(cloudPreferenceBonus, "user prefers cloud")
	}
	if tc.IsLateHours() {
		add(lateHoursPenalty, "late hours favor local processing")
	}

	eval := OverrideEvaluation{
		ShouldOverride:   raw >= overrideThreshold,
		Score:            clamp01(raw),
		RawScore:         raw,
		Reasons:          reasons,
		RecommendedModel: e.recommend(taskType, complexity),
	}
	if eval.ShouldOverride {
		eval.Confidence = clamp01(raw)
	}
	return eval
}

func (e *OverrideEvaluator) needsCreativity(c task.Classification, taskText string) bool {
	text := strings.ToLower(taskText)
	for _, marker := range e.tables.CreativityMarkers {
		if strings.Contains(text, marker) || c.HasKeyword(marker) {
			return true
		}
	}
	return false
}

func (e *OverrideEvaluator) recommend(t task.Type, complexity task.Level) string {
	route := e.tables.CloudFor(t)
	if complexity == task.High && route.HighComplexity != "" {
		return route.HighComplexity
	}
	return route.Model
}
