package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/0xmhha/hikelog/pkg/hike"
)

// entry is one added session with its recording totals.
type entry struct {
	session          *hike.Session
	recordings       int
	recordingSeconds float64
}

// aggregator implements the Aggregator interface.
type aggregator struct {
	config Config

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates a new aggregator.
func New(cfg Config) Aggregator {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &aggregator{
		config:  cfg,
		entries: make(map[string]*entry),
	}
}

// Add implements Aggregator.Add.
func (a *aggregator) Add(s *hike.Session, recordings []*hike.Recording) {
	if s == nil {
		return
	}

	e := &entry{session: s.Clone(), recordings: len(recordings)}
	for _, r := range recordings {
		e.recordingSeconds += r.Duration
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[s.ID] = e
}

// Summary implements Aggregator.Summary.
func (a *aggregator) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var (
		sum       Summary
		distances []float64
		liftTotal int
	)

	for _, e := range a.entries {
		s := e.session
		sum.Hikes++
		sum.Recordings += e.recordings
		sum.RecordingSeconds += e.recordingSeconds

		if sum.FirstHike.IsZero() || s.StartedAt.Before(sum.FirstHike) {
			sum.FirstHike = s.StartedAt
		}
		if s.StartedAt.After(sum.LastHike) {
			sum.LastHike = s.StartedAt
		}

		if s.Status != hike.StatusCompleted {
			sum.InProgress++
			continue
		}

		sum.Completed++
		sum.TotalDistanceKm += s.DistanceKm
		sum.TotalSteps += s.Steps
		sum.TotalDuration += s.Duration()
		distances = append(distances, s.DistanceKm)
		if s.DistanceKm > sum.LongestDistanceKm {
			sum.LongestDistanceKm = s.DistanceKm
		}

		if lift, ok := s.MoodLift(); ok {
			liftTotal += lift
			sum.MoodLiftCount++
		}
	}

	if sum.Completed > 0 {
		sum.AvgDuration = sum.TotalDuration / time.Duration(sum.Completed)
		sort.Float64s(distances)
		sum.MedianDistanceKm = percentile(distances, 50)
	}
	if sum.MoodLiftCount > 0 {
		sum.AvgMoodLift = float64(liftTotal) / float64(sum.MoodLiftCount)
	}

	return sum
}

// ByMonth implements Aggregator.ByMonth.
func (a *aggregator) ByMonth() []MonthStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	type acc struct {
		stats     MonthStats
		liftTotal int
		lifts     int
	}
	months := make(map[string]*acc)

	for _, e := range a.entries {
		s := e.session
		key := s.StartedAt.In(a.config.Location).Format("2006-01")

		m, ok := months[key]
		if !ok {
			m = &acc{stats: MonthStats{Month: key}}
			months[key] = m
		}

		m.stats.Hikes++
		m.stats.DistanceKm += s.DistanceKm
		m.stats.Duration += s.Duration()
		if lift, ok := s.MoodLift(); ok {
			m.liftTotal += lift
			m.lifts++
		}
	}

	result := make([]MonthStats, 0, len(months))
	for _, m := range months {
		if m.lifts > 0 {
			m.stats.AvgMoodLift = float64(m.liftTotal) / float64(m.lifts)
		}
		result = append(result, m.stats)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Month < result[j].Month
	})
	return result
}

// TopByDistance implements Aggregator.TopByDistance.
func (a *aggregator) TopByDistance(n int) []HikeStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make([]HikeStats, 0, len(a.entries))
	for _, e := range a.entries {
		s := e.session
		if s.Status != hike.StatusCompleted {
			continue
		}

		hs := HikeStats{
			ID:         s.ID,
			Title:      s.Title,
			StartedAt:  s.StartedAt,
			DistanceKm: s.DistanceKm,
			Duration:   s.Duration(),
		}
		if lift, ok := s.MoodLift(); ok {
			hs.MoodLift = &lift
		}
		result = append(result, hs)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DistanceKm != result[j].DistanceKm {
			return result[i].DistanceKm > result[j].DistanceKm
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if n > 0 && n < len(result) {
		result = result[:n]
	}
	return result
}

// Report implements Aggregator.Report.
func (a *aggregator) Report(top int) Report {
	return Report{
		Summary: a.Summary(),
		Months:  a.ByMonth(),
		Top:     a.TopByDistance(top),
	}
}

// Reset implements Aggregator.Reset.
func (a *aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = make(map[string]*entry)
}

// percentile returns the p-th percentile of sorted values using linear
// interpolation between closest ranks.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}

	fraction := rank - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}
