// Package stats summarizes the hike journal.
//
// It aggregates sessions (and optionally their recordings) into overall
// totals, per-month groups and a ranking of hikes by distance.
//
// Example usage:
//
//	agg := stats.New(stats.Config{})
//	for _, s := range sessions {
//	    agg.Add(s, recordingsBySession[s.ID])
//	}
//	report := agg.Report(5)
//	fmt.Printf("Distance: %.1f km\n", report.Summary.TotalDistanceKm)
package stats

import (
	"time"

	"github.com/0xmhha/hikelog/pkg/hike"
)

// Aggregator accumulates journal statistics.
type Aggregator interface {
	// Add adds a session and its recordings. Adding the same session id
	// again replaces the earlier entry.
	Add(s *hike.Session, recordings []*hike.Recording)

	// Summary returns totals across every added session.
	Summary() Summary

	// ByMonth returns per-month statistics in chronological order.
	ByMonth() []MonthStats

	// TopByDistance returns the n longest completed hikes (all if n <= 0).
	TopByDistance(n int) []HikeStats

	// Report bundles Summary, ByMonth and TopByDistance(top).
	Report(top int) Report

	// Reset clears all aggregated data.
	Reset()
}

// Summary contains journal-wide statistics.
type Summary struct {
	Hikes      int `json:"hikes"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`

	TotalDistanceKm   float64 `json:"total_distance_km"`
	MedianDistanceKm  float64 `json:"median_distance_km"`
	LongestDistanceKm float64 `json:"longest_distance_km"`
	TotalSteps        int     `json:"total_steps"`

	// Durations count completed hikes only.
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`

	// AvgMoodLift averages EndMood - StartMood over completed hikes.
	AvgMoodLift   float64 `json:"avg_mood_lift"`
	MoodLiftCount int     `json:"mood_lift_count"`

	Recordings       int     `json:"recordings"`
	RecordingSeconds float64 `json:"recording_seconds"`

	FirstHike time.Time `json:"first_hike,omitempty"`
	LastHike  time.Time `json:"last_hike,omitempty"`
}

// MonthStats groups hikes started in one calendar month.
type MonthStats struct {
	// Month is formatted YYYY-MM.
	Month       string        `json:"month"`
	Hikes       int           `json:"hikes"`
	DistanceKm  float64       `json:"distance_km"`
	Duration    time.Duration `json:"duration"`
	AvgMoodLift float64       `json:"avg_mood_lift"`
}

// HikeStats is one ranked hike.
type HikeStats struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	StartedAt  time.Time     `json:"started_at"`
	DistanceKm float64       `json:"distance_km"`
	Duration   time.Duration `json:"duration"`
	MoodLift   *int          `json:"mood_lift,omitempty"`
}

// Report is the full statistics view rendered by the CLI.
type Report struct {
	Summary Summary      `json:"summary"`
	Months  []MonthStats `json:"months"`
	Top     []HikeStats  `json:"top"`
}

// Config contains aggregator configuration.
type Config struct {
	// Location decides month boundaries. Default: time.Local.
	Location *time.Location
}
