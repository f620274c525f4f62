package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/zen-systems/switchyard/pkg/metrics"
	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/task"
)

const (
	// DefaultInsightTTL bounds how stale a cached insight may be.
	DefaultInsightTTL = 10 * time.Minute
	// DefaultWindowHours is used when Insights is called with a non-positive window.
	DefaultWindowHours = 24 * 7
)

type insightKey struct {
	taskType    task.Type
	windowHours int
}

// Recorder persists decisions and outcomes and serves cached insights.
// Recording is best effort: failures are logged and counted, never returned.
type Recorder struct {
	store   Store
	archive Archiver
	logger  zerolog.Logger
	now     func() time.Time
	ttl     time.Duration
	cache   *ttlCache[insightKey, Insight]
	group   singleflight.Group
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithArchive stores an audit copy of every recorded decision.
func WithArchive(a Archiver) RecorderOption {
	return func(r *Recorder) {
		r.archive = a
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithInsightTTL overrides DefaultInsightTTL.
func WithInsightTTL(ttl time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.ttl = ttl
	}
}

// NewRecorder creates a recorder backed by store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		logger: zerolog.Nop(),
		now:    time.Now,
		ttl:    DefaultInsightTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = newTTLCache[insightKey, Insight](r.ttl, r.now)
	return r
}

// Record stores the decision and its outcome. It returns the performance
// record id, or "" if anything failed.
func (r *Recorder) Record(ctx context.Context, d router.RoutingDecision, o Outcome) string {
	decisionID := r.RecordDecision(ctx, d, o.TaskType)
	if decisionID == "" {
		return ""
	}
	return r.RecordOutcome(ctx, decisionID, d, o)
}

// RecordDecision stores a decision once so several attempts can reference
// it. It returns the decision id, or "" on failure.
func (r *Recorder) RecordDecision(ctx context.Context, d router.RoutingDecision, taskType task.Type) (id string) {
	defer r.recoverInto("decision", &id)

	rec := DecisionRecord{
		ID:        uuid.NewString(),
		TaskType:  taskType.OrDefault(),
		Decision:  d,
		CreatedAt: r.now().UTC(),
	}

	if r.archive != nil {
		ref, err := r.archive.ArchiveDecision(d)
		if err != nil {
			metrics.RecordFailures.WithLabelValues("archive").Inc()
			r.logger.Warn().Err(err).Str("model", d.Model).Msg("archive decision failed")
		} else {
			rec.ArchiveRef = ref
		}
	}

	if err := r.store.InsertDecision(ctx, rec); err != nil {
		metrics.RecordFailures.WithLabelValues("decision").Inc()
		r.logger.Warn().Err(err).Str("model", d.Model).Str("task_type", string(rec.TaskType)).Msg("record decision failed")
		return ""
	}
	return rec.ID
}

// RecordOutcome appends one performance record for an invocation made on
// behalf of decisionID. It returns the record id, or "" on failure.
func (r *Recorder) RecordOutcome(ctx context.Context, decisionID string, d router.RoutingDecision, o Outcome) (id string) {
	defer r.recoverInto("performance", &id)

	at := o.At
	if at.IsZero() {
		at = r.now()
	}
	model := o.Model
	if model == "" {
		model = d.Model
	}
	rating := o.UserRating
	if rating != nil && (*rating < 1 || *rating > 5) {
		r.logger.Debug().Int("rating", *rating).Msg("ignoring out of range user rating")
		rating = nil
	}

	rec := PerformanceRecord{
		ID:             uuid.NewString(),
		DecisionID:     decisionID,
		Model:          model,
		TaskType:       o.TaskType.OrDefault(),
		ResponseTimeMs: o.ResponseTimeMs,
		Success:        o.Success,
		ErrorKind:      o.ErrorKind,
		Tokens:         o.Tokens,
		UserRating:     rating,
		HourOfDay:      at.Hour(),
		DayOfWeek:      int(at.Weekday()),
		SessionID:      o.SessionID,
		Context: ContextSnapshot{
			Strategy:         d.Strategy,
			Confidence:       d.Confidence,
			PrivacyProtected: d.Metadata.PrivacyProtected,
			LocalScore:       d.Metadata.LocalScore,
			Fallbacks:        d.Fallbacks,
		},
		CreatedAt: at.UTC(),
	}

	if err := r.store.InsertPerformanceRecord(ctx, rec); err != nil {
		metrics.RecordFailures.WithLabelValues("performance").Inc()
		r.logger.Warn().Err(err).Str("model", model).Str("task_type", string(rec.TaskType)).Msg("record outcome failed")
		return ""
	}
	return rec.ID
}

func (r *Recorder) recoverInto(stage string, id *string) {
	if p := recover(); p != nil {
		metrics.RecordFailures.WithLabelValues(stage).Inc()
		r.logger.Error().Str("stage", stage).Interface("panic", p).Msg("recorder panic")
		*id = ""
	}
}

type insightResult struct {
	insight   Insight
	cacheable bool
}

// Insights returns the aggregate for taskType over the last windowHours.
// Results are cached per (taskType, windowHours) for the recorder's TTL and
// are not invalidated by new records. Store errors yield the default insight,
// which is not cached. Each caller gets its own copy.
func (r *Recorder) Insights(ctx context.Context, taskType task.Type, windowHours int) Insight {
	taskType = taskType.OrDefault()
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	key := insightKey{taskType: taskType, windowHours: windowHours}

	if cached, ok := r.cache.get(key); ok {
		metrics.InsightCache.WithLabelValues("hit").Inc()
		return cached.clone()
	}
	metrics.InsightCache.WithLabelValues("miss").Inc()

	// Waiters share the first caller's work, so it must not inherit that
	// caller's cancellation.
	queryCtx := context.WithoutCancel(ctx)
	v, _, _ := r.group.Do(fmt.Sprintf("%s/%d", taskType, windowHours), func() (any, error) {
		if cached, ok := r.cache.get(key); ok {
			return insightResult{insight: cached}, nil
		}
		res := r.computeInsights(queryCtx, taskType, windowHours)
		if res.cacheable {
			r.cache.set(key, res.insight)
		}
		return res, nil
	})
	return v.(insightResult).insight.clone()
}

func (r *Recorder) computeInsights(ctx context.Context, taskType task.Type, windowHours int) insightResult {
	now := r.now()
	since := now.Add(-time.Duration(windowHours) * time.Hour)

	records, err := r.store.QueryRecords(ctx, taskType, since)
	if err != nil {
		metrics.RecordFailures.WithLabelValues("query").Inc()
		r.logger.Warn().Err(err).Str("task_type", string(taskType)).Msg("query performance records failed")
		return insightResult{insight: DefaultInsight(taskType, windowHours, now)}
	}
	return insightResult{insight: Aggregate(taskType, windowHours, records, now), cacheable: true}
}
