package router

import "fmt"

// ValidationResult reports invariant violations (Errors) and suspicious but
// acceptable decisions (Warnings).
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validator checks a composed decision before it leaves the router.
type Validator struct {
	registry ModelRegistry
}

// NewValidator creates a validator using registry for local classification.
func NewValidator(registry ModelRegistry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks d. When requiresLocal is set, the primary model and every
// fallback must be local.
func (v *Validator) Validate(d RoutingDecision, requiresLocal bool) ValidationResult {
	var res ValidationResult

	if requiresLocal {
		if !v.registry.IsLocal(d.Model) {
			res.Errors = append(res.Errors, fmt.Sprintf("privacy requires local processing but model %q is not local", d.Model))
		}
		for _, fb := range d.Fallbacks {
			if !v.registry.IsLocal(fb) {
				res.Errors = append(res.Errors, fmt.Sprintf("privacy requires local processing but fallback %q is not local", fb))
			}
		}
	}

	hasLocal := false
	for _, fb := range d.Fallbacks {
		if v.registry.IsLocal(fb) {
			hasLocal = true
			break
		}
	}
	if !hasLocal {
		res.Warnings = append(res.Warnings, "no local model in fallback chain")
	}
	if d.Confidence < fallbackConfidence && d.Strategy != StrategyLocalFirstFallback {
		res.Warnings = append(res.Warnings, fmt.Sprintf("low confidence %.2f for strategy %s", d.Confidence, d.Strategy))
	}

	res.Valid = len(res.Errors) == 0
	return res
}
