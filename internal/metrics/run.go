package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// RunMetrics tracks timings and result counts of one batch run
type RunMetrics struct {
	mu sync.Mutex

	Name           string             `json:"name"`
	StartTime      time.Time          `json:"-"`
	TotalLatencyMs float64            `json:"totalLatencyMs"`
	Timings        map[string]float64 `json:"timings"`
	Counts         map[string]int     `json:"counts"`

	phaseStart map[string]time.Time
}

// NewRunMetrics starts tracking a run
func NewRunMetrics(name string) *RunMetrics {
	return &RunMetrics{
		Name:       name,
		StartTime:  time.Now(),
		Timings:    make(map[string]float64),
		Counts:     make(map[string]int),
		phaseStart: make(map[string]time.Time),
	}
}

// StartPhase marks the beginning of a named phase
func (r *RunMetrics) StartPhase(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phaseStart[phase] = time.Now()
}

// EndPhase records the elapsed time of a phase
func (r *RunMetrics) EndPhase(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if start, ok := r.phaseStart[phase]; ok {
		r.Timings[phase] += float64(time.Since(start).Microseconds()) / 1000
		delete(r.phaseStart, phase)
	}
}

// Count increments a result counter
func (r *RunMetrics) Count(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts[key]++
}

// Finish records the total latency
func (r *RunMetrics) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TotalLatencyMs = float64(time.Since(r.StartTime).Microseconds()) / 1000
}

// Summary returns a human-readable summary of the run
func (r *RunMetrics) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, r.Counts[k]))
	}
	summary := fmt.Sprintf("%s: %s (%.2f ms)", r.Name, strings.Join(parts, ", "), r.TotalLatencyMs)

	phases := make([]string, 0, len(r.Timings))
	for p := range r.Timings {
		phases = append(phases, p)
	}
	sort.Strings(phases)
	for _, p := range phases {
		summary += fmt.Sprintf("\n  %s: %.2f ms", p, r.Timings[p])
	}
	return summary
}
