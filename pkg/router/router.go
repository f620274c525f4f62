// Package router turns a classified task plus its context into a routing
// decision: a primary model, a confidence, a justification and an ordered
// fallback chain.
package router

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/metrics"
	"github.com/zen-systems/switchyard/pkg/privacy"
	"github.com/zen-systems/switchyard/pkg/task"
)

// Request carries everything the context assembler knows about a task.
type Request struct {
	TaskText       string              `json:"task_text"`
	Classification task.Classification `json:"classification"`
	Cognitive      task.CognitiveState `json:"cognitive"`
	Time           task.TimeContext    `json:"time"`
	Profile        task.UserProfile    `json:"profile"`
	Baseline       *Baseline           `json:"baseline,omitempty"`
}

// Evaluation is the full trace of a routing call.
type Evaluation struct {
	Privacy    privacy.Analysis     `json:"privacy"`
	Capability CapabilityAssessment `json:"capability"`
	Override   OverrideEvaluation   `json:"override"`
	Baseline   Baseline             `json:"baseline"`
	Decision   RoutingDecision      `json:"decision"`
	Validation ValidationResult     `json:"validation"`
	Rederived  bool                 `json:"rederived,omitempty"`
}

// Router runs the decision pipeline. It holds only immutable tables and is
// safe for concurrent use.
type Router struct {
	tables     *config.RoutingTables
	registry   ModelRegistry
	hints      HintSource
	logger     zerolog.Logger
	privacy    *privacy.Analyzer
	capability *CapabilityEvaluator
	override   *OverrideEvaluator
	composer   *Composer
	validator  *Validator
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithRegistry replaces the marker-based local model registry.
func WithRegistry(registry ModelRegistry) Option {
	return func(r *Router) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// WithHints lets the capability evaluator reorder preferred local models.
func WithHints(hints HintSource) Option {
	return func(r *Router) {
		r.hints = hints
	}
}

// New creates a router over tables. A nil tables value uses the defaults.
func New(tables *config.RoutingTables, opts ...Option) *Router {
	if tables == nil {
		tables = config.DefaultRoutingTables()
	}
	r := &Router{
		tables:   tables,
		registry: MarkerRegistry{Markers: tables.LocalMarkers},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	fallbacks := NewFallbackBuilder(tables, r.registry)
	r.privacy = privacy.NewAnalyzer(tables.Privacy)
	r.capability = NewCapabilityEvaluator(tables, r.hints)
	r.override = NewOverrideEvaluator(tables)
	r.composer = NewComposer(fallbacks)
	r.validator = NewValidator(r.registry)
	return r
}

// Route returns the decision for req. Malformed input is rejected with an
// error wrapping task.ErrInvalidInput before anything is computed.
func (r *Router) Route(req Request) (RoutingDecision, error) {
	eval, err := r.Evaluate(req)
	if err != nil {
		return RoutingDecision{}, err
	}
	return eval.Decision, nil
}

// Evaluate runs the pipeline and returns every intermediate result.
func (r *Router) Evaluate(req Request) (*Evaluation, error) {
	if err := task.Validate(req.Classification, req.Cognitive, req.Time); err != nil {
		return nil, fmt.Errorf("route: %w", err)
	}
	if req.Baseline != nil && (req.Baseline.Confidence < 0 || req.Baseline.Confidence > 1) {
		return nil, fmt.Errorf("route: %w: baseline confidence %v out of range", task.ErrInvalidInput, req.Baseline.Confidence)
	}

	p := r.privacy.Analyze(req.Classification, req.Profile, req.TaskText, req.Time)
	capability := r.capability.Evaluate(req.Classification, req.Cognitive, p)
	override := r.override.Evaluate(req.Classification, req.Cognitive, capability, req.TaskText, req.Profile, req.Time)

	baseline := BaselineFor(req.Classification, capability)
	if req.Baseline != nil {
		baseline = *req.Baseline
	}

	decision := r.composer.Compose(baseline, capability, override, p)
	validation := r.validator.Validate(decision, p.RequiresLocal)
	eval := &Evaluation{
		Privacy:    p,
		Capability: capability,
		Override:   override,
		Baseline:   baseline,
		Decision:   decision,
		Validation: validation,
	}

	if !validation.Valid {
		metrics.ValidationFailures.Inc()
		r.logger.Warn().
			Str("model", decision.Model).
			Str("strategy", string(decision.Strategy)).
			Strs("errors", validation.Errors).
			Msg("decision failed validation, re-deriving as local only")

		decision = r.composer.privacyOnly(baseline, capability, override, p, r.guaranteedLocal(capability))
		eval.Decision = decision
		eval.Validation = r.validator.Validate(decision, true)
		eval.Rederived = true
	}

	for _, w := range eval.Validation.Warnings {
		r.logger.Debug().Str("model", decision.Model).Msg(w)
	}

	metrics.DecisionsTotal.WithLabelValues(string(decision.Strategy)).Inc()
	r.logger.Debug().
		Str("task_type", string(req.Classification.Type.OrDefault())).
		Str("model", decision.Model).
		Str("strategy", string(decision.Strategy)).
		Float64("confidence", decision.Confidence).
		Msg("routed")

	return eval, nil
}

// guaranteedLocal returns the first candidate the registry classifies as
// local, ending with the built-in default local model.
func (r *Router) guaranteedLocal(capability CapabilityAssessment) string {
	candidates := make([]string, 0, 2+len(capability.PreferredModels)+len(r.tables.SecondaryLocalModels))
	candidates = append(candidates, capability.RecommendedModel)
	candidates = append(candidates, capability.PreferredModels...)
	candidates = append(candidates, r.tables.SecondaryLocalModels...)
	candidates = append(candidates, r.tables.DefaultLocalModel)
	for _, m := range candidates {
		if r.registry.IsLocal(m) {
			return m
		}
	}
	return config.DefaultLocalModel
}

// Tables returns the routing tables the router was built with.
func (r *Router) Tables() *config.RoutingTables {
	return r.tables
}
