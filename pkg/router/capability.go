package router

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/privacy"
	"github.com/zen-systems/switchyard/pkg/task"
)

const (
	highComplexityFactor = 0.7
	lowComplexityFactor  = 1.2
	uncertaintyFactor    = 0.8
	hyperfocusFactor     = 1.1
	privacyFloor         = 0.8

	highCapability   = 0.8
	mediumCapability = 0.5
)

var paramCountPattern = regexp.MustCompile(`:(\d+(?:\.\d+)?)b`)

// CapabilityEvaluator scores how well a local model can serve a task.
type CapabilityEvaluator struct {
	tables *config.RoutingTables
	hints  HintSource
}

// NewCapabilityEvaluator creates an evaluator over the given tables. hints
// may be nil.
func NewCapabilityEvaluator(tables *config.RoutingTables, hints HintSource) *CapabilityEvaluator {
	return &CapabilityEvaluator{tables: tables, hints: hints}
}

// Evaluate computes the capability assessment. Missing inputs fall back to
// table defaults.
func (e *CapabilityEvaluator) Evaluate(c task.Classification, cs task.CognitiveState, p privacy.Analysis) CapabilityAssessment {
	taskType := c.Type.OrDefault()
	complexity := c.Complexity.Level.OrDefault()
	uncertainty := c.Uncertainty.Level.OrDefault()
	entry := e.tables.CapabilityFor(taskType)

	score := entry.BaseScore
	switch complexity {
	case task.High:
		score *= highComplexityFactor
	case task.Low:
		score *= lowComplexityFactor
		if score > 1 {
			score = 1
		}
	}
	if uncertainty == task.UncertaintyHigh || uncertainty == task.UncertaintyVeryHigh {
		score *= uncertaintyFactor
	}
	if cs.HyperfocusPotential && (taskType == task.Debug || taskType == task.Code) {
		score *= hyperfocusFactor
	}
	score = clamp01(score)
	base := score
	if p.RequiresLocal && score < privacyFloor {
		score = privacyFloor
	}

	preferred := e.applyHints(taskType, entry.PreferredModels)

	return CapabilityAssessment{
		Score:            score,
		Level:            capabilityLevel(score),
		BaseScore:        base,
		BaseLevel:        capabilityLevel(base),
		RecommendedModel: e.recommend(taskType, complexity, cs, preferred),
		PreferredModels:  preferred,
		Limitations:      e.limitations(taskType, complexity, uncertainty),
	}
}

func capabilityLevel(score float64) CapabilityLevel {
	switch {
	case score >= highCapability:
		return CapabilityHigh
	case score >= mediumCapability:
		return CapabilityMedium
	default:
		return CapabilityLow
	}
}

// applyHints moves a learned local favourite to the front of a copy of the
// preferred list. Models not already in the list are ignored.
func (e *CapabilityEvaluator) applyHints(t task.Type, preferred []string) []string {
	out := make([]string, len(preferred))
	copy(out, preferred)
	if e.hints == nil {
		return out
	}
	best, ok := e.hints.PreferredLocalModel(t)
	if !ok {
		return out
	}
	for i, m := range out {
		if m == best {
			copy(out[1:i+1], out[:i])
			out[0] = best
			break
		}
	}
	return out
}

func (e *CapabilityEvaluator) recommend(t task.Type, complexity task.Level, cs task.CognitiveState, preferred []string) string {
	var model string
	switch {
	case complexity == task.Low || t == task.QuickQuery:
		model = e.smallest(preferred)
	case complexity == task.High:
		model = largest(preferred)
	case cs.HyperfocusPotential:
		model = e.tables.FlagshipLocalModel
	case len(preferred) > 0:
		model = preferred[0]
	}
	if model == "" {
		model = e.tables.DefaultLocalModel
	}
	return model
}

// smallest returns the first model carrying a small-size marker, or the first
// model when none does.
func (e *CapabilityEvaluator) smallest(models []string) string {
	for _, m := range models {
		lower := strings.ToLower(m)
		for _, marker := range e.tables.SmallModelMarkers {
			if strings.Contains(lower, marker) {
				return m
			}
		}
	}
	if len(models) > 0 {
		return models[0]
	}
	return ""
}

// largest returns the model with the highest parsed parameter count. Ties and
// unparseable names keep list order.
func largest(models []string) string {
	best := ""
	bestSize := -1.0
	for _, m := range models {
		size := paramCount(m)
		if size > bestSize {
			best, bestSize = m, size
		}
	}
	return best
}

func paramCount(model string) float64 {
	match := paramCountPattern.FindStringSubmatch(strings.ToLower(model))
	if match == nil {
		return 0
	}
	n, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return n
}

func (e *CapabilityEvaluator) limitations(t task.Type, complexity task.Level, uncertainty task.Uncertainty) []string {
	lim := e.tables.Limitations
	var out []string
	out = append(out, lim.ByTaskType[t]...)
	out = append(out, lim.ByComplexity[complexity]...)
	out = append(out, lim.ByUncertainty[uncertainty]...)
	return out
}
