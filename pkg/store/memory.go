package store

import (
	"context"
	"sync"
	"time"

	"github.com/zen-systems/switchyard/pkg/feedback"
	"github.com/zen-systems/switchyard/pkg/task"
)

// Memory is an in-process feedback.Store for tests and ephemeral runs.
type Memory struct {
	mu        sync.RWMutex
	decisions []feedback.DecisionRecord
	records   []feedback.PerformanceRecord
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

// InsertDecision implements feedback.Store.
func (m *Memory) InsertDecision(_ context.Context, rec feedback.DecisionRecord) error {
	m.mu.Lock()
	m.decisions = append(m.decisions, rec)
	m.mu.Unlock()
	return nil
}

// InsertPerformanceRecord implements feedback.Store.
func (m *Memory) InsertPerformanceRecord(_ context.Context, rec feedback.PerformanceRecord) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

// QueryRecords implements feedback.Store.
func (m *Memory) QueryRecords(_ context.Context, taskType task.Type, since time.Time) ([]feedback.PerformanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []feedback.PerformanceRecord
	for _, rec := range m.records {
		if rec.TaskType == taskType && !rec.CreatedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Decisions returns a copy of the stored decisions.
func (m *Memory) Decisions() []feedback.DecisionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]feedback.DecisionRecord, len(m.decisions))
	copy(out, m.decisions)
	return out
}
