package feedback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/task"
)

// DefaultCalibrationSchedule refreshes hints as often as insights expire.
const DefaultCalibrationSchedule = "@every 10m"

// InsightSource computes insights. *Recorder satisfies it.
type InsightSource interface {
	Insights(ctx context.Context, taskType task.Type, windowHours int) Insight
}

// Hints is an immutable snapshot of learned preferences.
type Hints struct {
	BestLocal   map[task.Type]string `json:"best_local"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Calibrator turns insights into routing hints. It implements
// router.HintSource; the current snapshot is swapped atomically so routers
// read it without locking.
type Calibrator struct {
	source      InsightSource
	registry    router.ModelRegistry
	minSamples  int
	windowHours int
	logger      zerolog.Logger

	hints atomic.Pointer[Hints]

	mu   sync.Mutex
	cron *cron.Cron
}

// CalibratorOption configures a Calibrator.
type CalibratorOption func(*Calibrator)

// WithMinSamples sets how many uses a model needs before it can be hinted.
func WithMinSamples(n int) CalibratorOption {
	return func(c *Calibrator) {
		c.minSamples = n
	}
}

// WithWindowHours sets the insight window.
func WithWindowHours(h int) CalibratorOption {
	return func(c *Calibrator) {
		c.windowHours = h
	}
}

// WithCalibratorLogger sets the logger.
func WithCalibratorLogger(logger zerolog.Logger) CalibratorOption {
	return func(c *Calibrator) {
		c.logger = logger
	}
}

// NewCalibrator creates a calibrator. Only models the registry classifies as
// local are ever hinted.
func NewCalibrator(source InsightSource, registry router.ModelRegistry, opts ...CalibratorOption) *Calibrator {
	c := &Calibrator{
		source:      source,
		registry:    registry,
		minSamples:  minSamplesForAdvice,
		windowHours: DefaultWindowHours,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.hints.Store(&Hints{BestLocal: map[task.Type]string{}})
	return c
}

// PreferredLocalModel implements router.HintSource.
func (c *Calibrator) PreferredLocalModel(t task.Type) (string, bool) {
	h := c.hints.Load()
	m, ok := h.BestLocal[t.OrDefault()]
	return m, ok
}

// Snapshot returns the current hints.
func (c *Calibrator) Snapshot() *Hints {
	return c.hints.Load()
}

// Refresh recomputes hints for every task type and publishes them.
func (c *Calibrator) Refresh(ctx context.Context) *Hints {
	next := &Hints{
		BestLocal:   make(map[task.Type]string),
		GeneratedAt: time.Now().UTC(),
	}
	for _, t := range task.AllTaskTypes() {
		insight := c.source.Insights(ctx, t, c.windowHours)
		if model, ok := c.bestLocal(insight); ok {
			next.BestLocal[t] = model
		}
	}
	c.hints.Store(next)
	c.logger.Debug().Int("hints", len(next.BestLocal)).Msg("calibration refreshed")
	return next
}

// bestLocal picks the highest scoring local model with enough samples.
// insight.Models is already ordered by performance score.
func (c *Calibrator) bestLocal(insight Insight) (string, bool) {
	for _, m := range insight.Models {
		if m.Usage >= c.minSamples && c.registry.IsLocal(m.Model) {
			return m.Model, true
		}
	}
	return "", false
}

// Start refreshes once and then on the cron schedule. An empty schedule uses
// DefaultCalibrationSchedule.
func (c *Calibrator) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultCalibrationSchedule
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return fmt.Errorf("calibrator already started")
	}

	sched := cron.New()
	if _, err := sched.AddFunc(schedule, func() { c.Refresh(ctx) }); err != nil {
		return fmt.Errorf("schedule calibration %q: %w", schedule, err)
	}
	c.Refresh(ctx)
	sched.Start()
	c.cron = sched
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (c *Calibrator) Stop() {
	c.mu.Lock()
	sched := c.cron
	c.cron = nil
	c.mu.Unlock()

	if sched != nil {
		<-sched.Stop().Done()
	}
}
