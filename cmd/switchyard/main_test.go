package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/switchyard/pkg/feedback"
	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/task"
)

type emptyInsights struct{}

func (emptyInsights) Insights(_ context.Context, t task.Type, windowHours int) feedback.Insight {
	return feedback.Insight{TaskType: t, WindowHours: windowHours}
}

func TestStartCalibratorSchedules(t *testing.T) {
	c := feedback.NewCalibrator(emptyInsights{}, router.MarkerRegistry{})

	stop := startCalibrator(context.Background(), c, "")
	assert.False(t, c.Snapshot().GeneratedAt.IsZero())
	assert.Error(t, c.Start(context.Background(), ""), "schedule should be running")

	stop()
	require.NoError(t, c.Start(context.Background(), ""), "stop should release the schedule")
	c.Stop()
}

func TestStartCalibratorBadSchedule(t *testing.T) {
	c := feedback.NewCalibrator(emptyInsights{}, router.MarkerRegistry{})

	stop := startCalibrator(context.Background(), c, "every so often")
	assert.False(t, c.Snapshot().GeneratedAt.IsZero(), "falls back to a single refresh")
	stop()
	require.NoError(t, c.Start(context.Background(), ""))
	c.Stop()
}
