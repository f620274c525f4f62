package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/privacy"
	"github.com/zen-systems/switchyard/pkg/task"
)

func TestOverrideEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		class      task.Classification
		cognitive  task.CognitiveState
		capability CapabilityAssessment
		text       string
		profile    task.UserProfile
		hour       int
		wantRaw    float64
		wantScore  float64
		wantOver   bool
		wantModel  string
	}{
		{
			name:       "nothing fires",
			class:      classify(task.Code, task.Medium, task.UncertaintyMedium),
			capability: CapabilityAssessment{Level: CapabilityHigh},
			hour:       14,
			wantModel:  config.DefaultCloudModel,
		},
		{
			name:       "research alone stays below the threshold",
			class:      classify(task.Research, task.Medium, task.UncertaintyMedium),
			capability: CapabilityAssessment{Level: CapabilityLow},
			hour:       14,
			wantRaw:    0.4,
			wantScore:  0.4,
			wantModel:  "google/gemini-2.0-pro",
		},
		{
			name:       "research with very high uncertainty overrides",
			class:      classify(task.Research, task.Medium, task.UncertaintyVeryHigh),
			capability: CapabilityAssessment{Level: CapabilityLow},
			hour:       14,
			wantRaw:    0.6,
			wantScore:  0.6,
			wantOver:   true,
			wantModel:  "google/gemini-2.0-pro",
		},
		{
			name:       "complex creative writing with a cloud preference",
			class:      classify(task.Write, task.High, task.UncertaintyMedium),
			capability: CapabilityAssessment{Level: CapabilityLow},
			text:       "write a short story about a lighthouse",
			profile:    task.UserProfile{PreferCloud: true},
			hour:       14,
			wantRaw:    1.0,
			wantScore:  1.0,
			wantOver:   true,
			wantModel:  config.FlagshipGenerativeCloud,
		},
		{
			name:       "every positive signal is clamped",
			class:      classify(task.Write, task.High, task.UncertaintyVeryHigh),
			cognitive:  task.CognitiveState{CapacityLevel: task.High, TaskAlignmentLevel: task.High},
			capability: CapabilityAssessment{Level: CapabilityLow},
			text:       "brainstorm a poem",
			profile:    task.UserProfile{PreferCloud: true},
			hour:       14,
			wantRaw:    1.3,
			wantScore:  1.0,
			wantOver:   true,
			wantModel:  config.FlagshipGenerativeCloud,
		},
		{
			name:       "night alone clamps at zero",
			class:      classify(task.Analyze, task.High, task.UncertaintyMedium),
			capability: CapabilityAssessment{Level: CapabilityMedium},
			hour:       2,
			wantRaw:    -0.5,
			wantScore:  0,
			wantModel:  config.FlagshipReasoningCloud,
		},
		{
			name:       "unlisted type uses the default cloud model",
			class:      classify(task.Journal, task.High, task.UncertaintyMedium),
			capability: CapabilityAssessment{Level: CapabilityHigh},
			hour:       14,
			wantModel:  config.DefaultCloudModel,
		},
	}

	e := NewOverrideEvaluator(config.DefaultRoutingTables())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.class, tt.cognitive, tt.capability, tt.text, tt.profile, task.TimeContext{Hour: tt.hour})
			assert.InDelta(t, tt.wantRaw, got.RawScore, 1e-9)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.Equal(t, tt.wantOver, got.ShouldOverride)
			assert.Equal(t, tt.wantModel, got.RecommendedModel)
			if got.ShouldOverride {
				assert.InDelta(t, tt.wantScore, got.Confidence, 1e-9)
			} else {
				assert.Zero(t, got.Confidence)
			}
		})
	}
}

func TestOverrideNightBias(t *testing.T) {
	e := NewOverrideEvaluator(config.DefaultRoutingTables())
	class := classify(task.Research, task.High, task.UncertaintyVeryHigh)
	capability := CapabilityAssessment{Level: CapabilityLow}
	cognitive := task.CognitiveState{CapacityLevel: task.High, TaskAlignmentLevel: task.High}
	profile := task.UserProfile{PreferCloud: true}

	day := e.Evaluate(class, cognitive, capability, "", profile, task.TimeContext{Hour: 14})
	for _, hour := range []int{23, 1, 4} {
		night := e.Evaluate(class, cognitive, capability, "", profile, task.TimeContext{Hour: hour})
		assert.InDelta(t, day.RawScore-0.5, night.RawScore, 1e-9, "hour %d", hour)
		assert.Contains(t, night.Reasons, "late hours favor local processing")
	}
}

func TestOverrideComplexityGapIgnoresPrivacyFloor(t *testing.T) {
	tables := config.DefaultRoutingTables()
	capabilities := NewCapabilityEvaluator(tables, nil)
	e := NewOverrideEvaluator(tables)
	class := classify(task.Research, task.High, task.UncertaintyVeryHigh)
	cognitive := task.CognitiveState{CapacityLevel: task.High, TaskAlignmentLevel: task.High}
	profile := task.UserProfile{PreferCloud: true}

	open := capabilities.Evaluate(class, cognitive, privacy.Analysis{})
	floored := capabilities.Evaluate(class, cognitive, privacy.Analysis{RequiresLocal: true})
	assert.Equal(t, CapabilityLow, open.Level)
	assert.InDelta(t, 0.8, floored.Score, 1e-9)
	assert.Equal(t, CapabilityHigh, floored.Level)
	assert.Equal(t, CapabilityLow, floored.BaseLevel)
	assert.InDelta(t, open.Score, floored.BaseScore, 1e-9)

	day := e.Evaluate(class, cognitive, open, "", profile, task.TimeContext{Hour: 14})
	assert.Contains(t, day.Reasons, "high complexity exceeds local capability")
	for _, hour := range []int{23, 1, 4} {
		night := e.Evaluate(class, cognitive, floored, "", profile, task.TimeContext{Hour: hour})
		assert.InDelta(t, day.RawScore-0.5, night.RawScore, 1e-9, "hour %d", hour)
		assert.Contains(t, night.Reasons, "high complexity exceeds local capability", "hour %d", hour)
	}
}
