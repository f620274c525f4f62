// Package privacy decides how sensitive a task is and whether it must stay
// on a local model.
package privacy

import (
	"strings"

	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/task"
)

// Level is the privacy classification of a task.
type Level string

const (
	Strict  Level = "strict"
	Medium  Level = "medium"
	Relaxed Level = "relaxed"
)

const (
	strongConfidence = 0.9
	weakConfidence   = 0.6
)

// Analysis is the privacy verdict for a single request. It depends on the
// hour and is never reused across requests.
type Analysis struct {
	Level         Level    `json:"level"`
	RequiresLocal bool     `json:"requires_local"`
	Reasons       []string `json:"reasons"`
	Confidence    float64  `json:"confidence"`
}

// Analyzer applies the privacy rules. It holds only immutable tables and is
// safe for concurrent use.
type Analyzer struct {
	keywords    []string
	strictTypes map[task.Type]bool
	mediumTypes map[task.Type]bool
}

// NewAnalyzer builds an analyzer from the privacy section of the routing
// tables.
func NewAnalyzer(tables config.PrivacyTables) *Analyzer {
	a := &Analyzer{
		keywords:    make([]string, 0, len(tables.Keywords)),
		strictTypes: make(map[task.Type]bool, len(tables.StrictTypes)),
		mediumTypes: make(map[task.Type]bool, len(tables.MediumTypes)),
	}
	for _, kw := range tables.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			a.keywords = append(a.keywords, kw)
		}
	}
	for _, t := range tables.StrictTypes {
		a.strictTypes[t] = true
	}
	for _, t := range tables.MediumTypes {
		a.mediumTypes[t] = true
	}
	return a
}

// Analyze evaluates the rules in order. Rules accumulate; the profile and
// late-hours rules can only tighten the verdict.
func (a *Analyzer) Analyze(c task.Classification, profile task.UserProfile, taskText string, tc task.TimeContext) Analysis {
	result := Analysis{Level: Relaxed, Confidence: weakConfidence}
	taskType := c.Type.OrDefault()

	if kw, ok := a.matchKeyword(c, profile, taskText); ok {
		result.Level = Strict
		result.RequiresLocal = true
		result.Confidence = strongConfidence
		result.Reasons = append(result.Reasons, "contains privacy keyword: "+kw)
	} else if a.strictTypes[taskType] {
		result.Level = Strict
		result.RequiresLocal = true
		result.Confidence = strongConfidence
		result.Reasons = append(result.Reasons, "sensitive task type: "+string(taskType))
	} else if a.mediumTypes[taskType] {
		result.Level = Medium
		result.Reasons = append(result.Reasons, "moderately sensitive task type: "+string(taskType))
	}

	if profile.FallbackBehavior.CloudFailure == task.CloudFailureLocalOnly {
		result.RequiresLocal = true
		result.Reasons = append(result.Reasons, "user fallback preference is local only")
	}
	if profile.PrivacyPreferences.AlwaysLocal {
		result.RequiresLocal = true
		result.Reasons = append(result.Reasons, "user privacy preference is always local")
	}
	if tc.IsLateHours() {
		result.RequiresLocal = true
		result.Reasons = append(result.Reasons, "late hours protection")
	}

	return result
}

// matchKeyword returns the first privacy keyword found in the task text or
// the classifier keywords. User keywords are checked after the table.
func (a *Analyzer) matchKeyword(c task.Classification, profile task.UserProfile, taskText string) (string, bool) {
	text := strings.ToLower(taskText)
	check := func(kw string) bool {
		return strings.Contains(text, kw) || c.HasKeyword(kw)
	}

	for _, kw := range a.keywords {
		if check(kw) {
			return kw, true
		}
	}
	for _, kw := range profile.PrivacyPreferences.SensitiveKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && check(kw) {
			return kw, true
		}
	}
	return "", false
}
