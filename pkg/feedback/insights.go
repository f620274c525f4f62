package feedback

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zen-systems/switchyard/pkg/task"
)

const (
	successWeight = 0.5
	speedWeight   = 0.25
	ratingWeight  = 0.25

	// latencyCeilingMs is the average latency at which the speed score hits zero.
	latencyCeilingMs = 10000.0
	neutralRating    = 0.5

	fullConfidenceSamples = 20
	minSamplesForAdvice   = 5
	avoidSuccessRate      = 0.5
	maxTopErrors          = 3
	maxPeakHours          = 3
)

// DefaultInsight is returned when there is no data to aggregate.
func DefaultInsight(taskType task.Type, windowHours int, now time.Time) Insight {
	return Insight{
		TaskType:    taskType,
		WindowHours: windowHours,
		GeneratedAt: now.UTC(),
		Models:      []ModelStats{},
		Recommendations: []Recommendation{{
			Kind:       RecommendDataCollection,
			Message:    fmt.Sprintf("not enough performance data for %s tasks yet", taskType),
			Confidence: 0.1,
		}},
	}
}

// PerformanceScore combines success rate, speed and rating. ratingCount of
// zero scores the rating as neutral.
func PerformanceScore(successRate, avgLatencyMs, avgRating float64, ratingCount int) float64 {
	speed := math.Max(0, 1-avgLatencyMs/latencyCeilingMs)
	rating := neutralRating
	if ratingCount > 0 {
		rating = (avgRating - 1) / 4
	}
	return successWeight*successRate + speedWeight*speed + ratingWeight*rating
}

type modelAccumulator struct {
	usage     int
	successes int
	latency   int64
	ratingSum int
	ratings   int
	errors    map[string]int
}

// Aggregate builds an insight from records. Zero records yield DefaultInsight.
func Aggregate(taskType task.Type, windowHours int, records []PerformanceRecord, now time.Time) Insight {
	if len(records) == 0 {
		return DefaultInsight(taskType, windowHours, now)
	}

	byModel := make(map[string]*modelAccumulator)
	hourSuccess := make(map[int]int)
	var calibration float64

	for _, rec := range records {
		acc, ok := byModel[rec.Model]
		if !ok {
			acc = &modelAccumulator{errors: make(map[string]int)}
			byModel[rec.Model] = acc
		}
		acc.usage++
		acc.latency += rec.ResponseTimeMs
		actual := 0.0
		if rec.Success {
			acc.successes++
			hourSuccess[rec.HourOfDay]++
			actual = 1
		} else if rec.ErrorKind != "" {
			acc.errors[rec.ErrorKind]++
		}
		if rec.UserRating != nil {
			acc.ratingSum += *rec.UserRating
			acc.ratings++
		}
		calibration += math.Abs(rec.Context.Confidence - actual)
	}

	insight := Insight{
		TaskType:         taskType,
		WindowHours:      windowHours,
		GeneratedAt:      now.UTC(),
		SampleCount:      len(records),
		Confidence:       math.Min(1, float64(len(records))/fullConfidenceSamples),
		Models:           make([]ModelStats, 0, len(byModel)),
		PeakHours:        peakHours(hourSuccess),
		CalibrationError: calibration / float64(len(records)),
	}

	for model, acc := range byModel {
		stats := ModelStats{
			Model:        model,
			Usage:        acc.usage,
			SuccessRate:  float64(acc.successes) / float64(acc.usage),
			AvgLatencyMs: float64(acc.latency) / float64(acc.usage),
			RatingCount:  acc.ratings,
			TopErrors:    topErrors(acc.errors),
		}
		if acc.ratings > 0 {
			stats.AvgRating = float64(acc.ratingSum) / float64(acc.ratings)
		}
		stats.PerformanceScore = PerformanceScore(stats.SuccessRate, stats.AvgLatencyMs, stats.AvgRating, stats.RatingCount)
		insight.Models = append(insight.Models, stats)
	}
	sort.Slice(insight.Models, func(i, j int) bool {
		a, b := insight.Models[i], insight.Models[j]
		if a.PerformanceScore != b.PerformanceScore {
			return a.PerformanceScore > b.PerformanceScore
		}
		if a.Usage != b.Usage {
			return a.Usage > b.Usage
		}
		return a.Model < b.Model
	})
	insight.BestModel = insight.Models[0].Model
	insight.Recommendations = recommend(insight)

	return insight
}

func recommend(in Insight) []Recommendation {
	var recs []Recommendation

	if in.SampleCount < minSamplesForAdvice {
		recs = append(recs, Recommendation{
			Kind:       RecommendDataCollection,
			Message:    fmt.Sprintf("only %d outcomes recorded for %s tasks", in.SampleCount, in.TaskType),
			Confidence: 0.1,
		})
	}

	best := in.Models[0]
	recs = append(recs, Recommendation{
		Kind:       RecommendPreferModel,
		Model:      best.Model,
		Message:    fmt.Sprintf("%s has the best performance score (%.2f) for %s tasks", best.Model, best.PerformanceScore, in.TaskType),
		Confidence: in.Confidence,
	})

	for _, m := range in.Models {
		if m.Usage >= minSamplesForAdvice && m.SuccessRate < avoidSuccessRate {
			recs = append(recs, Recommendation{
				Kind:       RecommendAvoidModel,
				Model:      m.Model,
				Message:    fmt.Sprintf("%s succeeded on only %.0f%% of %d calls", m.Model, m.SuccessRate*100, m.Usage),
				Confidence: in.Confidence,
			})
		}
	}

	if len(in.PeakHours) > 0 && in.SampleCount >= minSamplesForAdvice {
		recs = append(recs, Recommendation{
			Kind:       RecommendPeakHours,
			Message:    fmt.Sprintf("most successful hours: %v", in.PeakHours),
			Confidence: in.Confidence,
		})
	}

	return recs
}

// peakHours returns up to three hours with the most successes, busiest first.
func peakHours(hourSuccess map[int]int) []int {
	hours := make([]int, 0, len(hourSuccess))
	for h := range hourSuccess {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if hourSuccess[hours[i]] != hourSuccess[hours[j]] {
			return hourSuccess[hours[i]] > hourSuccess[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > maxPeakHours {
		hours = hours[:maxPeakHours]
	}
	return hours
}

func topErrors(counts map[string]int) []ErrorCount {
	if len(counts) == 0 {
		return nil
	}
	out := make([]ErrorCount, 0, len(counts))
	for kind, n := range counts {
		out = append(out, ErrorCount{Kind: kind, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	if len(out) > maxTopErrors {
		out = out[:maxTopErrors]
	}
	return out
}
