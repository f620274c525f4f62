package feedback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/task"
)

type staticInsights map[task.Type]Insight

func (s staticInsights) Insights(_ context.Context, t task.Type, windowHours int) Insight {
	if in, ok := s[t]; ok {
		return in
	}
	return Insight{TaskType: t, WindowHours: windowHours}
}

func TestCalibratorRefresh(t *testing.T) {
	source := staticInsights{
		task.Code: {Models: []ModelStats{
			{Model: "anthropic/claude-sonnet-4-20250514", Usage: 40, PerformanceScore: 0.95},
			{Model: "ollama/qwen2.5-coder:32b", Usage: 12, PerformanceScore: 0.9},
			{Model: "docker/ai/qwen2.5-coder:7b", Usage: 30, PerformanceScore: 0.7},
		}},
		task.Summarize: {Models: []ModelStats{
			{Model: "ollama/llama3.2:3b", Usage: 2, PerformanceScore: 0.99},
		}},
	}
	registry := router.MarkerRegistry{Markers: []string{"ollama/", "docker/"}}
	c := NewCalibrator(source, registry, WithMinSamples(5))

	_, ok := c.PreferredLocalModel(task.Code)
	assert.False(t, ok, "no hints before the first refresh")

	hints := c.Refresh(context.Background())
	assert.Equal(t, map[task.Type]string{task.Code: "ollama/qwen2.5-coder:32b"}, hints.BestLocal)

	model, ok := c.PreferredLocalModel(task.Code)
	require.True(t, ok)
	assert.Equal(t, "ollama/qwen2.5-coder:32b", model)

	_, ok = c.PreferredLocalModel(task.Summarize)
	assert.False(t, ok, "too few samples")
}

func TestCalibratorFeedsRouter(t *testing.T) {
	source := staticInsights{
		task.Code: {Models: []ModelStats{{Model: "ollama/llama3.2:3b", Usage: 9, PerformanceScore: 0.9}}},
	}
	c := NewCalibrator(source, router.MarkerRegistry{Markers: []string{"ollama/"}})
	c.Refresh(context.Background())

	r := router.New(nil, router.WithHints(c))
	d, err := r.Route(router.Request{
		Classification: task.Classification{Type: task.Code},
		Time:           task.TimeContext{Hour: 12},
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama/llama3.2:3b", d.Model)
}

func TestCalibratorStartStop(t *testing.T) {
	c := NewCalibrator(staticInsights{}, router.MarkerRegistry{})

	assert.Error(t, c.Start(context.Background(), "not a schedule"))

	require.NoError(t, c.Start(context.Background(), ""))
	assert.NotNil(t, c.Snapshot())
	assert.False(t, c.Snapshot().GeneratedAt.IsZero(), "Start refreshes immediately")
	assert.Error(t, c.Start(context.Background(), ""), "double start")
	c.Stop()
	c.Stop()
}
