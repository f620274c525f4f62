// Package dispatch invokes the models a routing decision names: the primary
// first, then each fallback, retrying transient failures and reporting every
// attempt to the feedback loop.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zen-systems/switchyard/pkg/adapter"
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/feedback"
	"github.com/zen-systems/switchyard/pkg/metrics"
	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/task"
)

const tracerName = "github.com/zen-systems/switchyard/pkg/dispatch"

// ErrNoEligibleTarget means every target was skipped before any call was made.
var ErrNoEligibleTarget = errors.New("no eligible model to invoke")

// Recorder receives the decision once and an outcome per attempt.
// *feedback.Recorder satisfies it.
type Recorder interface {
	RecordDecision(ctx context.Context, d router.RoutingDecision, taskType task.Type) string
	RecordOutcome(ctx context.Context, decisionID string, d router.RoutingDecision, o feedback.Outcome) string
}

// ExecuteOptions carries per-request data that is not part of the decision.
type ExecuteOptions struct {
	TaskType   task.Type
	SessionID  string
	UserRating *int
	Generate   adapter.Options
}

// Skip explains why a target was not invoked.
type Skip struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

// Result is the outcome of executing a decision.
type Result struct {
	Response   *adapter.Response    `json:"response,omitempty"`
	Model      string               `json:"model,omitempty"`
	DecisionID string               `json:"decision_id,omitempty"`
	Reports    []adapter.CallReport `json:"reports"`
	Skipped    []Skip               `json:"skipped,omitempty"`
	Usage      adapter.Usage        `json:"usage"`
	Cost       adapter.Cost         `json:"cost"`
}

// Executor runs routing decisions against a set of adapters.
type Executor struct {
	adapters *adapter.Set
	registry router.ModelRegistry
	recorder Recorder
	retry    config.RetryConfig
	pricing  priceTable
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithRecorder feeds every attempt to r.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) {
		e.recorder = r
	}
}

// WithRegistry sets how models are classified as local.
func WithRegistry(registry router.ModelRegistry) Option {
	return func(e *Executor) {
		if registry != nil {
			e.registry = registry
		}
	}
}

// WithRetry sets retry, backoff and per-call timeout.
func WithRetry(retry config.RetryConfig) Option {
	return func(e *Executor) {
		e.retry = retry
	}
}

// WithPricing sets the table used for cost estimates.
func WithPricing(pricing config.PricingConfig) Option {
	return func(e *Executor) {
		e.pricing = priceTable(pricing)
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor over adapters.
func NewExecutor(adapters *adapter.Set, opts ...Option) *Executor {
	e := &Executor{
		adapters: adapters,
		registry: router.MarkerRegistry{Markers: config.DefaultRoutingTables().LocalMarkers},
		retry:    config.RetryConfig{MaxRetries: 2, BaseBackoffMs: 200, MaxBackoffMs: 2000, TimeoutMs: 120000},
		logger:   zerolog.Nop(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute invokes decision.Model, then each fallback in order, until one
// succeeds. A privacy protected decision never reaches a non-local model,
// whatever the decision lists. The returned Result is non-nil even on error.
func (e *Executor) Execute(ctx context.Context, decision router.RoutingDecision, prompt string, opts ExecuteOptions) (*Result, error) {
	result := &Result{Cost: adapter.Cost{Currency: "USD"}}
	if e.recorder != nil {
		result.DecisionID = e.recorder.RecordDecision(ctx, decision, opts.TaskType)
	}

	var lastErr error
	invoked := 0

	for idx, modelID := range decision.Targets() {
		if decision.Metadata.PrivacyProtected && !e.registry.IsLocal(modelID) {
			e.logger.Warn().Str("model", modelID).Str("strategy", string(decision.Strategy)).Msg("skipping non-local model for privacy protected decision")
			result.Skipped = append(result.Skipped, Skip{Model: modelID, Reason: "privacy requires local processing"})
			continue
		}
		impl, model, err := e.adapters.Resolve(modelID)
		if err != nil {
			e.logger.Debug().Err(err).Str("model", modelID).Msg("skipping unavailable model")
			result.Skipped = append(result.Skipped, Skip{Model: modelID, Reason: err.Error()})
			continue
		}
		invoked++

		resp, err := e.callWithRetry(ctx, impl, modelID, model, prompt, idx > 0, decision, opts, result)
		if err == nil {
			result.Response = resp
			result.Model = modelID
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	if invoked == 0 {
		return result, ErrNoEligibleTarget
	}
	return result, fmt.Errorf("all %d invoked models failed: %w", invoked, lastErr)
}

func (e *Executor) callWithRetry(
	ctx context.Context,
	impl adapter.Adapter,
	modelID, model, prompt string,
	fallback bool,
	decision router.RoutingDecision,
	opts ExecuteOptions,
	result *Result,
) (*adapter.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		resp, report, err := e.invoke(ctx, impl, modelID, model, prompt, opts.Generate, attempt, fallback)
		result.Reports = append(result.Reports, report)
		e.recordAttempt(ctx, result.DecisionID, decision, opts, modelID, report, err)

		if err == nil {
			result.Usage = result.Usage.Add(report.Usage)
			result.Cost.Amount += report.Cost.Amount
			result.Cost.IsEstimate = result.Cost.IsEstimate || report.Cost.IsEstimate
			return resp, nil
		}

		lastErr = err
		if !adapter.IsTransient(err) || attempt == e.retry.MaxRetries {
			break
		}

		backoff := computeBackoff(e.retry.BaseBackoffMs, e.retry.MaxBackoffMs, attempt)
		e.logger.Debug().Err(err).Str("model", modelID).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying transient failure")
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// invoke makes one call under the per-call timeout and its own span.
func (e *Executor) invoke(ctx context.Context, impl adapter.Adapter, modelID, model, prompt string, genOpts adapter.Options, attempt int, fallback bool) (*adapter.Response, adapter.CallReport, error) {
	ctx, span := e.tracer.Start(ctx, "dispatch.invoke", trace.WithAttributes(
		attribute.String("switchyard.model", modelID),
		attribute.String("switchyard.provider", impl.Name()),
		attribute.Int("switchyard.attempt", attempt),
		attribute.Bool("switchyard.fallback", fallback),
	))
	defer span.End()

	if e.retry.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.retry.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	report := adapter.CallReport{
		Adapter:      impl.Name(),
		Model:        model,
		Retries:      attempt,
		FallbackUsed: fallback,
		Cost:         adapter.Cost{Currency: "USD"},
	}

	start := time.Now()
	resp, err := impl.Generate(ctx, model, prompt, genOpts)
	if err == nil && resp == nil {
		err = &adapter.Error{Code: adapter.CodeParseError, Err: fmt.Errorf("%s returned no response", impl.Name())}
	}
	elapsed := time.Since(start)
	report.DurationMs = elapsed.Milliseconds()

	if err != nil {
		report.ErrorCode = adapter.Classify(err)
		report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(report.ErrorCode))
		metrics.InvocationSeconds.WithLabelValues(impl.Name(), "error").Observe(elapsed.Seconds())
		return nil, report, err
	}

	if resp.Usage != nil {
		report.Usage = resp.Usage.Normalize()
	}
	report.Cost = e.pricing.estimate(impl.Name(), model, report.Usage)
	span.SetAttributes(attribute.Int("switchyard.tokens", report.Usage.TotalTokens))
	metrics.InvocationSeconds.WithLabelValues(impl.Name(), "success").Observe(elapsed.Seconds())
	return resp, report, nil
}

func (e *Executor) recordAttempt(ctx context.Context, decisionID string, decision router.RoutingDecision, opts ExecuteOptions, modelID string, report adapter.CallReport, err error) {
	if e.recorder == nil || decisionID == "" {
		return
	}
	outcome := feedback.Outcome{
		Model:          modelID,
		Success:        err == nil,
		ErrorKind:      string(report.ErrorCode),
		ResponseTimeMs: report.DurationMs,
		Tokens:         report.Usage.TotalTokens,
		SessionID:      opts.SessionID,
		TaskType:       opts.TaskType,
		At:             e.now(),
	}
	if err == nil {
		outcome.UserRating = opts.UserRating
	}
	e.recorder.RecordOutcome(ctx, decisionID, decision, outcome)
}

func computeBackoff(baseMs, maxMs, attempt int) time.Duration {
	backoff := time.Duration(baseMs) * time.Millisecond
	limit := time.Duration(maxMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	if backoff > limit {
		return limit
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
