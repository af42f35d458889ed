package pipeline

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at       time.Time
	took     time.Duration
	sections int
	failures int
}

// StatsSnapshot aggregates the compile samples inside the window.
type StatsSnapshot struct {
	Documents int     `json:"documents"`
	Sections  int     `json:"sections"`
	Failures  int     `json:"failures"`
	MinMs     float64 `json:"min_ms"`
	MaxMs     float64 `json:"max_ms"`
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

// Stats tracks recent document compilations within a rolling window.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
	now     func() time.Time
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		window:  window,
		now:     time.Now,
	}
}

// Record adds one compiled document.
func (s *Stats) Record(took time.Duration, sections, failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		at:       now,
		took:     max(took, 0),
		sections: sections,
		failures: failures,
	})
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	snap := StatsSnapshot{Documents: len(s.samples)}
	ms := make([]float64, 0, len(s.samples))
	var sum float64
	for _, sm := range s.samples {
		v := float64(sm.took) / float64(time.Millisecond)
		ms = append(ms, v)
		sum += v
		snap.Sections += sm.sections
		snap.Failures += sm.failures
	}
	slices.Sort(ms)

	snap.MinMs = ms[0]
	snap.MaxMs = ms[len(ms)-1]
	snap.AvgMs = sum / float64(len(ms))
	snap.P50Ms = percentile(ms, 50)
	snap.P95Ms = percentile(ms, 95)
	snap.P99Ms = percentile(ms, 99)
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := float64(len(sorted)-1) * pct / 100
	lower := int(rank)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[lower+1]-sorted[lower])*weight
}
