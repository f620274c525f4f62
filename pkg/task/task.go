// Package task defines the routing inputs produced by the context assembler:
// the task classification, the user's cognitive state, the time of day and
// the user profile. All values are immutable once handed to the router.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInput is returned when an input value is malformed (as opposed to
// merely missing, which is defaulted).
var ErrInvalidInput = errors.New("invalid routing input")

// Type is the task category assigned by the upstream classifier.
type Type string

const (
	Code       Type = "code"
	Debug      Type = "debug"
	Write      Type = "write"
	Creative   Type = "creative"
	Research   Type = "research"
	Analyze    Type = "analyze"
	Explain    Type = "explain"
	QuickQuery Type = "quick_query"
	Plan       Type = "plan"
	Summarize  Type = "summarize"
	Personal   Type = "personal"
	Journal    Type = "journal"
	Health     Type = "health"
	Finance    Type = "finance"
	General    Type = "general"
)

var allTypes = []Type{
	Code, Debug, Write, Creative, Research, Analyze, Explain, QuickQuery,
	Plan, Summarize, Personal, Journal, Health, Finance, General,
}

// AllTaskTypes returns every task type variant, default last.
func AllTaskTypes() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// ParseTaskType parses a task type. An empty value is the default (general).
func ParseTaskType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return General, nil
	}
	for _, t := range allTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown task type %q", ErrInvalidInput, s)
}

// Valid reports whether t is a known variant.
func (t Type) Valid() bool {
	for _, known := range allTypes {
		if t == known {
			return true
		}
	}
	return false
}

// OrDefault returns General for the zero value.
func (t Type) OrDefault() Type {
	if t == "" {
		return General
	}
	return t
}

// Level is a three-step scale used for complexity, capacity and alignment.
type Level string

const (
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

// ParseLevel parses a level. An empty value defaults to medium.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return Medium, nil
	case Low:
		return Low, nil
	case Medium:
		return Medium, nil
	case High:
		return High, nil
	}
	return "", fmt.Errorf("%w: unknown level %q", ErrInvalidInput, s)
}

// OrDefault returns Medium for the zero value.
func (l Level) OrDefault() Level {
	if l == "" {
		return Medium
	}
	return l
}

func (l Level) valid() bool {
	return l == "" || l == Low || l == Medium || l == High
}

// Uncertainty is the classifier's uncertainty about the task.
type Uncertainty string

const (
	UncertaintyLow      Uncertainty = "low"
	UncertaintyMedium   Uncertainty = "medium"
	UncertaintyHigh     Uncertainty = "high"
	UncertaintyVeryHigh Uncertainty = "very_high"
)

// ParseUncertainty parses an uncertainty level. An empty value defaults to medium.
func ParseUncertainty(s string) (Uncertainty, error) {
	switch Uncertainty(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return UncertaintyMedium, nil
	case UncertaintyLow:
		return UncertaintyLow, nil
	case UncertaintyMedium:
		return UncertaintyMedium, nil
	case UncertaintyHigh:
		return UncertaintyHigh, nil
	case UncertaintyVeryHigh:
		return UncertaintyVeryHigh, nil
	}
	return "", fmt.Errorf("%w: unknown uncertainty %q", ErrInvalidInput, s)
}

// OrDefault returns UncertaintyMedium for the zero value.
func (u Uncertainty) OrDefault() Uncertainty {
	if u == "" {
		return UncertaintyMedium
	}
	return u
}

func (u Uncertainty) valid() bool {
	switch u {
	case "", UncertaintyLow, UncertaintyMedium, UncertaintyHigh, UncertaintyVeryHigh:
		return true
	}
	return false
}

// Complexity wraps the complexity level.
type Complexity struct {
	Level Level `json:"level" yaml:"level"`
}

// UncertaintyInfo wraps the uncertainty level.
type UncertaintyInfo struct {
	Level Uncertainty `json:"level" yaml:"level"`
}

// Classification is the upstream classifier's verdict on the task text.
type Classification struct {
	Type        Type            `json:"type"`
	Complexity  Complexity      `json:"complexity"`
	Uncertainty UncertaintyInfo `json:"uncertainty"`
	Keywords    []string        `json:"keywords,omitempty"`
}

// HasKeyword reports whether any keyword contains needle (case-insensitive).
func (c Classification) HasKeyword(needle string) bool {
	needle = strings.ToLower(needle)
	for _, kw := range c.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}

// CognitiveState describes the user's current attention and energy.
type CognitiveState struct {
	CapacityLevel       Level `json:"capacity_level"`
	TaskAlignmentLevel  Level `json:"task_alignment_level"`
	HyperfocusPotential bool  `json:"hyperfocus_potential"`
}

// TimeContext carries the hour of day at decision time.
type TimeContext struct {
	Hour int `json:"hour"`
}

// TimeAt derives the time context for t in t's location.
func TimeAt(t time.Time) TimeContext {
	return TimeContext{Hour: t.Hour()}
}

// IsLateHours reports whether the hour falls in [22,24) or [0,5].
func (tc TimeContext) IsLateHours() bool {
	return tc.Hour >= 22 || tc.Hour <= 5
}

// CloudFailureLocalOnly forces local processing in FallbackBehavior.
const CloudFailureLocalOnly = "use_local_only"

// PrivacyPreferences are standing user privacy settings.
type PrivacyPreferences struct {
	AlwaysLocal       bool     `json:"always_local,omitempty" yaml:"always_local,omitempty"`
	SensitiveKeywords []string `json:"sensitive_keywords,omitempty" yaml:"sensitive_keywords,omitempty"`
}

// FallbackBehavior describes what the user wants when cloud processing fails.
type FallbackBehavior struct {
	CloudFailure string `json:"cloud_failure,omitempty" yaml:"cloud_failure,omitempty"`
}

// UserProfile holds the user's routing preferences.
type UserProfile struct {
	PrivacyPreferences PrivacyPreferences `json:"privacy_preferences" yaml:"privacy_preferences"`
	PreferCloud        bool               `json:"prefer_cloud,omitempty" yaml:"prefer_cloud,omitempty"`
	FallbackBehavior   FallbackBehavior   `json:"fallback_behavior" yaml:"fallback_behavior"`
}

// Validate rejects malformed inputs. Empty fields are accepted and defaulted
// by the scoring functions.
func Validate(c Classification, cs CognitiveState, tc TimeContext) error {
	if c.Type != "" && !c.Type.Valid() {
		return fmt.Errorf("%w: unknown task type %q", ErrInvalidInput, c.Type)
	}
	if !c.Complexity.Level.valid() {
		return fmt.Errorf("%w: unknown complexity %q", ErrInvalidInput, c.Complexity.Level)
	}
	if !c.Uncertainty.Level.valid() {
		return fmt.Errorf("%w: unknown uncertainty %q", ErrInvalidInput, c.Uncertainty.Level)
	}
	if !cs.CapacityLevel.valid() {
		return fmt.Errorf("%w: unknown capacity level %q", ErrInvalidInput, cs.CapacityLevel)
	}
	if !cs.TaskAlignmentLevel.valid() {
		return fmt.Errorf("%w: unknown task alignment level %q", ErrInvalidInput, cs.TaskAlignmentLevel)
	}
	if tc.Hour < 0 || tc.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidInput, tc.Hour)
	}
	return nil
}
