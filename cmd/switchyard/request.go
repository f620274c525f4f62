package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/task"
)

// requestFlags are the classification and context inputs shared by route
// and ask. Classification is supplied by the caller; nothing here inspects
// the task text beyond passing it along.
type requestFlags struct {
	taskType    string
	complexity  string
	uncertainty string
	keywords    []string
	capacity    string
	alignment   string
	hyperfocus  bool
	hour        int
	preferCloud bool
	localOnly   bool
	alwaysLocal bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.taskType, "type", "general", "task type (code, debug, write, creative, analyze, ...)")
	flags.StringVar(&f.complexity, "complexity", "medium", "task complexity (low, medium, high)")
	flags.StringVar(&f.uncertainty, "uncertainty", "medium", "classifier uncertainty (low, medium, high, very_high)")
	flags.StringSliceVar(&f.keywords, "keywords", nil, "classifier keywords")
	flags.StringVar(&f.capacity, "capacity", "medium", "cognitive capacity (low, medium, high)")
	flags.StringVar(&f.alignment, "alignment", "medium", "task alignment (low, medium, high)")
	flags.BoolVar(&f.hyperfocus, "hyperfocus", false, "hyperfocus potential")
	flags.IntVar(&f.hour, "hour", -1, "hour of day 0-23 (default: now)")
	flags.BoolVar(&f.preferCloud, "prefer-cloud", false, "prefer cloud models")
	flags.BoolVar(&f.localOnly, "local-only", false, "fall back to local models only")
	flags.BoolVar(&f.alwaysLocal, "always-local", false, "always process locally")
}

// build turns the flags into a router request. The profile from config is
// the base; flags only ever tighten privacy or opt into cloud.
func (f *requestFlags) build(text string, profile task.UserProfile, now time.Time) (router.Request, error) {
	tt, err := task.ParseTaskType(f.taskType)
	if err != nil {
		return router.Request{}, err
	}
	complexity, err := task.ParseLevel(f.complexity)
	if err != nil {
		return router.Request{}, err
	}
	uncertainty, err := task.ParseUncertainty(f.uncertainty)
	if err != nil {
		return router.Request{}, err
	}
	capacity, err := task.ParseLevel(f.capacity)
	if err != nil {
		return router.Request{}, err
	}
	alignment, err := task.ParseLevel(f.alignment)
	if err != nil {
		return router.Request{}, err
	}

	tc := task.TimeAt(now)
	if f.hour >= 0 {
		tc = task.TimeContext{Hour: f.hour}
	}

	var keywords []string
	for _, kw := range f.keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	if f.preferCloud {
		profile.PreferCloud = true
	}
	if f.alwaysLocal {
		profile.PrivacyPreferences.AlwaysLocal = true
	}
	if f.localOnly {
		profile.FallbackBehavior.CloudFailure = task.CloudFailureLocalOnly
	}

	return router.Request{
		TaskText: text,
		Classification: task.Classification{
			Type:        tt,
			Complexity:  task.Complexity{Level: complexity},
			Uncertainty: task.UncertaintyInfo{Level: uncertainty},
			Keywords:    keywords,
		},
		Cognitive: task.CognitiveState{
			CapacityLevel:       capacity,
			TaskAlignmentLevel:  alignment,
			HyperfocusPotential: f.hyperfocus,
		},
		Time:    tc,
		Profile: profile,
	}, nil
}
