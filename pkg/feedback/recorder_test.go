package feedback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/switchyard/pkg/metrics"
	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/task"
)

type fakeStore struct {
	mu          sync.Mutex
	decisions   []DecisionRecord
	records     []PerformanceRecord
	decisionErr error
	recordErr   error
	queryErr    error
	panicOn     string
	queries     atomic.Int32
}

func (s *fakeStore) InsertDecision(_ context.Context, rec DecisionRecord) error {
	if s.panicOn == "decision" {
		panic("boom")
	}
	if s.decisionErr != nil {
		return s.decisionErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, rec)
	return nil
}

func (s *fakeStore) InsertPerformanceRecord(_ context.Context, rec PerformanceRecord) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) QueryRecords(_ context.Context, taskType task.Type, since time.Time) ([]PerformanceRecord, error) {
	s.queries.Add(1)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []PerformanceRecord
	for _, r := range s.records {
		if r.TaskType == taskType && !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeArchive struct {
	err error
}

func (a fakeArchive) ArchiveDecision(router.RoutingDecision) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "decision:abc", nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	// A Wednesday afternoon.
	return &clock{now: time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)}
}

func sampleDecision() router.RoutingDecision {
	return router.RoutingDecision{
		Model:      "ollama/llama3.1:8b",
		Reason:     "write task, medium complexity; local model is capable",
		Confidence: 0.75,
		Strategy:   router.StrategyLocalFirstCapable,
		Fallbacks:  []string{"ollama/llama3.2:3b"},
		Metadata: router.DecisionMetadata{
			OriginalModel:  "ollama/llama3.1:8b",
			LocalCandidate: "ollama/llama3.1:8b",
			LocalScore:     0.72,
		},
	}
}

func intPtr(v int) *int { return &v }

func TestRecord(t *testing.T) {
	store := &fakeStore{}
	clk := newClock()
	r := NewRecorder(store, WithClock(clk.Now), WithArchive(fakeArchive{}))

	id := r.Record(context.Background(), sampleDecision(), Outcome{
		Success:        true,
		ResponseTimeMs: 1200,
		Tokens:         300,
		UserRating:     intPtr(4),
		SessionID:      "s-1",
		TaskType:       task.Write,
	})
	require.NotEmpty(t, id)
	require.Len(t, store.decisions, 1)
	require.Len(t, store.records, 1)

	dec := store.decisions[0]
	assert.Equal(t, "decision:abc", dec.ArchiveRef)
	assert.Equal(t, task.Write, dec.TaskType)

	rec := store.records[0]
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, dec.ID, rec.DecisionID)
	assert.Equal(t, "ollama/llama3.1:8b", rec.Model)
	assert.Equal(t, 14, rec.HourOfDay)
	assert.Equal(t, int(time.Wednesday), rec.DayOfWeek)
	assert.Equal(t, 4, *rec.UserRating)
	assert.Equal(t, router.StrategyLocalFirstCapable, rec.Context.Strategy)
	assert.Equal(t, 0.72, rec.Context.LocalScore)
	assert.Equal(t, []string{"ollama/llama3.2:3b"}, rec.Context.Fallbacks)
}

func TestRecordOutcomeUsesInvokedModel(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store)
	id := r.RecordOutcome(context.Background(), "d-1", sampleDecision(), Outcome{
		Model:      "ollama/llama3.2:3b",
		Success:    false,
		ErrorKind:  "timeout",
		UserRating: intPtr(9),
		At:         time.Date(2026, 1, 4, 23, 0, 0, 0, time.UTC),
	})
	require.NotEmpty(t, id)

	rec := store.records[0]
	assert.Equal(t, "ollama/llama3.2:3b", rec.Model)
	assert.Equal(t, task.General, rec.TaskType)
	assert.Equal(t, 23, rec.HourOfDay)
	assert.Equal(t, int(time.Sunday), rec.DayOfWeek)
	assert.Nil(t, rec.UserRating, "out of range ratings are dropped")
}

func TestRecordNeverFails(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
		stage string
	}{
		{name: "decision insert error", store: &fakeStore{decisionErr: errors.New("disk full")}, stage: "decision"},
		{name: "record insert error", store: &fakeStore{recordErr: errors.New("locked")}, stage: "performance"},
		{name: "store panic", store: &fakeStore{panicOn: "decision"}, stage: "decision"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(metrics.RecordFailures.WithLabelValues(tt.stage))
			r := NewRecorder(tt.store)

			id := r.Record(context.Background(), sampleDecision(), Outcome{Success: true, TaskType: task.Code})
			assert.Empty(t, id)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.RecordFailures.WithLabelValues(tt.stage)))
		})
	}
}

func TestRecordArchiveFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, WithArchive(fakeArchive{err: errors.New("read-only")}))

	id := r.Record(context.Background(), sampleDecision(), Outcome{Success: true})
	assert.NotEmpty(t, id)
	assert.Empty(t, store.decisions[0].ArchiveRef)
}

func TestInsightsZeroRecords(t *testing.T) {
	r := NewRecorder(&fakeStore{})
	in := r.Insights(context.Background(), task.Plan, 24)

	assert.Equal(t, task.Plan, in.TaskType)
	assert.Zero(t, in.Confidence)
	assert.Zero(t, in.SampleCount)
	assert.Empty(t, in.Models)
	require.Len(t, in.Recommendations, 1)
	assert.Equal(t, RecommendDataCollection, in.Recommendations[0].Kind)
}

func TestInsightsStoreErrorIsNotCached(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("db closed")}
	r := NewRecorder(store)

	in := r.Insights(context.Background(), task.Code, 24)
	assert.Zero(t, in.Confidence)
	assert.Equal(t, RecommendDataCollection, in.Recommendations[0].Kind)

	store.queryErr = nil
	r.Insights(context.Background(), task.Code, 24)
	assert.Equal(t, int32(2), store.queries.Load())
}

func TestInsightsCacheTTL(t *testing.T) {
	store := &fakeStore{}
	clk := newClock()
	r := NewRecorder(store, WithClock(clk.Now))
	ctx := context.Background()

	r.Record(ctx, sampleDecision(), Outcome{Success: true, ResponseTimeMs: 500, TaskType: task.Write})
	first := r.Insights(ctx, task.Write, 24)
	require.Equal(t, 1, first.SampleCount)

	r.Record(ctx, sampleDecision(), Outcome{Success: true, ResponseTimeMs: 500, TaskType: task.Write})

	clk.Advance(9 * time.Minute)
	stale := r.Insights(ctx, task.Write, 24)
	assert.Equal(t, 1, stale.SampleCount, "cache hit must not see new records")

	// A different window is a different key.
	assert.Equal(t, 2, r.Insights(ctx, task.Write, 48).SampleCount)

	clk.Advance(2 * time.Minute)
	fresh := r.Insights(ctx, task.Write, 24)
	assert.Equal(t, 2, fresh.SampleCount)
	assert.Equal(t, int32(3), store.queries.Load())
}

func TestInsightsCollapsesConcurrentMisses(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store)
	ctx := context.Background()
	r.Record(ctx, sampleDecision(), Outcome{Success: true, TaskType: task.Code})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := r.Insights(ctx, task.Code, 24)
			assert.Equal(t, 1, in.SampleCount)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), store.queries.Load())
}

func TestInsightsReturnsPrivateCopies(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, WithClock(newClock().Now))
	ctx := context.Background()
	r.Record(ctx, sampleDecision(), Outcome{Success: true, ResponseTimeMs: 400, TaskType: task.Code})
	r.Record(ctx, sampleDecision(), Outcome{Success: false, ErrorKind: "timeout", TaskType: task.Code})

	first := r.Insights(ctx, task.Code, 24)
	require.NotEmpty(t, first.Models)
	require.NotEmpty(t, first.Models[0].TopErrors)
	require.NotEmpty(t, first.PeakHours)
	require.NotEmpty(t, first.Recommendations)

	first.Models[0].Model = "tampered"
	first.Models[0].TopErrors[0].Kind = "tampered"
	first.PeakHours[0] = -1
	first.Recommendations[0].Message = "tampered"

	hit := r.Insights(ctx, task.Code, 24)
	assert.Equal(t, "ollama/llama3.1:8b", hit.Models[0].Model)
	assert.Equal(t, "timeout", hit.Models[0].TopErrors[0].Kind)
	assert.Equal(t, []int{14}, hit.PeakHours)
	assert.NotEqual(t, "tampered", hit.Recommendations[0].Message)
	assert.Equal(t, int32(1), store.queries.Load(), "second call must be a cache hit")

	hit.PeakHours[0] = -1
	assert.Equal(t, []int{14}, r.Insights(ctx, task.Code, 24).PeakHours)
}
