// Package feedback records the real-world outcome of routing decisions and
// aggregates them into insights that calibrate future routing.
package feedback

import (
	"context"
	"slices"
	"time"

	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/task"
)

// Outcome is what happened when a routed model was invoked. Model is the
// model actually called; empty means the decision's primary model.
type Outcome struct {
	Model          string    `json:"model,omitempty"`
	Success        bool      `json:"success"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	Tokens         int       `json:"tokens,omitempty"`
	UserRating     *int      `json:"user_rating,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	TaskType       task.Type `json:"task_type"`
	At             time.Time `json:"at"`
}

// ContextSnapshot is the slice of the decision stored with each record.
type ContextSnapshot struct {
	Strategy         router.Strategy `json:"strategy"`
	Confidence       float64         `json:"confidence"`
	PrivacyProtected bool            `json:"privacy_protected"`
	LocalScore       float64         `json:"local_score"`
	Fallbacks        []string        `json:"fallbacks,omitempty"`
}

// DecisionRecord is a persisted routing decision.
type DecisionRecord struct {
	ID         string                 `json:"id"`
	TaskType   task.Type              `json:"task_type"`
	Decision   router.RoutingDecision `json:"decision"`
	ArchiveRef string                 `json:"archive_ref,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// PerformanceRecord is one observed invocation. Records are append-only.
type PerformanceRecord struct {
	ID             string          `json:"id"`
	DecisionID     string          `json:"decision_id"`
	Model          string          `json:"model"`
	TaskType       task.Type       `json:"task_type"`
	ResponseTimeMs int64           `json:"response_time_ms"`
	Success        bool            `json:"success"`
	ErrorKind      string          `json:"error_kind,omitempty"`
	Tokens         int             `json:"tokens,omitempty"`
	UserRating     *int            `json:"user_rating,omitempty"`
	HourOfDay      int             `json:"hour_of_day"`
	DayOfWeek      int             `json:"day_of_week"`
	SessionID      string          `json:"session_id,omitempty"`
	Context        ContextSnapshot `json:"context"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Store persists decisions and performance records.
type Store interface {
	InsertDecision(ctx context.Context, rec DecisionRecord) error
	InsertPerformanceRecord(ctx context.Context, rec PerformanceRecord) error
	// QueryRecords returns records for taskType created at or after since.
	QueryRecords(ctx context.Context, taskType task.Type, since time.Time) ([]PerformanceRecord, error)
}

// Archiver keeps an audit copy of a decision and returns its reference.
type Archiver interface {
	ArchiveDecision(d router.RoutingDecision) (string, error)
}

// ModelStats aggregates one model's records inside an insight window.
type ModelStats struct {
	Model            string       `json:"model"`
	Usage            int          `json:"usage"`
	SuccessRate      float64      `json:"success_rate"`
	AvgLatencyMs     float64      `json:"avg_latency_ms"`
	AvgRating        float64      `json:"avg_rating,omitempty"`
	RatingCount      int          `json:"rating_count"`
	TopErrors        []ErrorCount `json:"top_errors,omitempty"`
	PerformanceScore float64      `json:"performance_score"`
}

// ErrorCount counts one error kind.
type ErrorCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Recommendation kinds.
const (
	RecommendDataCollection = "data_collection"
	RecommendPreferModel    = "prefer_model"
	RecommendAvoidModel     = "avoid_model"
	RecommendPeakHours      = "peak_hours"
)

// Recommendation is an actionable hint derived from an insight.
type Recommendation struct {
	Kind       string  `json:"kind"`
	Model      string  `json:"model,omitempty"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
}

// Insight is a time-windowed aggregate over performance records.
type Insight struct {
	TaskType         task.Type        `json:"task_type"`
	WindowHours      int              `json:"window_hours"`
	GeneratedAt      time.Time        `json:"generated_at"`
	SampleCount      int              `json:"sample_count"`
	Confidence       float64          `json:"confidence"`
	Models           []ModelStats     `json:"models"`
	BestModel        string           `json:"best_model,omitempty"`
	PeakHours        []int            `json:"peak_hours,omitempty"`
	CalibrationError float64          `json:"calibration_error"`
	Recommendations  []Recommendation `json:"recommendations"`
}

// clone copies in so callers cannot reach slices held by the insight cache.
func (in Insight) clone() Insight {
	out := in
	if in.Models != nil {
		out.Models = make([]ModelStats, len(in.Models))
		for i, m := range in.Models {
			m.TopErrors = slices.Clone(m.TopErrors)
			out.Models[i] = m
		}
	}
	out.PeakHours = slices.Clone(in.PeakHours)
	out.Recommendations = slices.Clone(in.Recommendations)
	return out
}
