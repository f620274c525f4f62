package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/switchyard/pkg/task"
)

func TestPerformanceScore(t *testing.T) {
	tests := []struct {
		name        string
		successRate float64
		latencyMs   float64
		avgRating   float64
		ratings     int
		want        float64
	}{
		{name: "perfect", successRate: 1, latencyMs: 0, avgRating: 5, ratings: 3, want: 1},
		{name: "no ratings are neutral", successRate: 1, latencyMs: 0, ratings: 0, want: 0.875},
		{name: "slow calls floor the speed score", successRate: 0.5, latencyMs: 25000, avgRating: 1, ratings: 1, want: 0.25},
		{name: "mixed", successRate: 0.8, latencyMs: 2000, avgRating: 3, ratings: 2, want: 0.4 + 0.2 + 0.125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PerformanceScore(tt.successRate, tt.latencyMs, tt.avgRating, tt.ratings)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func record(model string, success bool, latency int64, hour int, rating *int, errKind string, confidence float64) PerformanceRecord {
	return PerformanceRecord{
		Model:          model,
		TaskType:       task.Code,
		Success:        success,
		ResponseTimeMs: latency,
		HourOfDay:      hour,
		UserRating:     rating,
		ErrorKind:      errKind,
		Context:        ContextSnapshot{Confidence: confidence},
	}
}

func TestAggregate(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	local := "ollama/qwen2.5-coder:32b"
	cloud := "anthropic/claude-sonnet-4-20250514"
	flaky := "docker/ai/qwen2.5-coder:7b"

	var records []PerformanceRecord
	for i := 0; i < 4; i++ {
		records = append(records, record(local, true, 1000, 9, intPtr(5), "", 0.8))
	}
	records = append(records, record(cloud, true, 3000, 10, nil, "", 0.8))
	records = append(records, record(cloud, false, 3000, 10, nil, "timeout", 0.8))
	for i := 0; i < 5; i++ {
		success := i == 0
		kind := "connection_refused"
		if i == 4 {
			kind = "timeout"
		}
		if success {
			kind = ""
		}
		records = append(records, record(flaky, success, 500, 22, nil, kind, 0.5))
	}

	in := Aggregate(task.Code, 24, records, now)

	assert.Equal(t, 11, in.SampleCount)
	assert.InDelta(t, 11.0/20.0, in.Confidence, 1e-9)
	require.Len(t, in.Models, 3)
	assert.Equal(t, local, in.BestModel)
	assert.Equal(t, local, in.Models[0].Model)

	best := in.Models[0]
	assert.Equal(t, 4, best.Usage)
	assert.Equal(t, 1.0, best.SuccessRate)
	assert.Equal(t, 1000.0, best.AvgLatencyMs)
	assert.Equal(t, 5.0, best.AvgRating)
	assert.InDelta(t, 0.5+0.25*0.9+0.25, best.PerformanceScore, 1e-9)

	var flakyStats ModelStats
	for _, m := range in.Models {
		if m.Model == flaky {
			flakyStats = m
		}
	}
	assert.Equal(t, 0.2, flakyStats.SuccessRate)
	assert.Equal(t, []ErrorCount{{Kind: "connection_refused", Count: 3}, {Kind: "timeout", Count: 1}}, flakyStats.TopErrors)

	assert.Equal(t, []int{9, 10, 22}, in.PeakHours)

	// |0.8-1|*5 + |0.8-0| + |0.5-1| + |0.5-0|*4 = 1.0 + 0.8 + 0.5 + 2.0
	assert.InDelta(t, 4.3/11, in.CalibrationError, 1e-9)

	kinds := map[string]string{}
	for _, rec := range in.Recommendations {
		kinds[rec.Kind] = rec.Model
	}
	assert.Equal(t, local, kinds[RecommendPreferModel])
	assert.Equal(t, flaky, kinds[RecommendAvoidModel])
	assert.Contains(t, kinds, RecommendPeakHours)
	assert.NotContains(t, kinds, RecommendDataCollection)
}

func TestAggregateFewSamplesAsksForData(t *testing.T) {
	in := Aggregate(task.Plan, 24, []PerformanceRecord{record("ollama/llama3.1:8b", true, 100, 8, nil, "", 0.7)}, time.Now())
	require.NotEmpty(t, in.Recommendations)
	assert.Equal(t, RecommendDataCollection, in.Recommendations[0].Kind)
	assert.Equal(t, "ollama/llama3.1:8b", in.BestModel)
	assert.InDelta(t, 0.05, in.Confidence, 1e-9)
}

func TestDefaultInsight(t *testing.T) {
	in := Aggregate(task.Finance, 12, nil, time.Now())
	assert.Zero(t, in.Confidence)
	assert.Equal(t, 12, in.WindowHours)
	assert.NotNil(t, in.Models)
	require.Len(t, in.Recommendations, 1)
	assert.Equal(t, RecommendDataCollection, in.Recommendations[0].Kind)
}
