package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics counts chat turns per intent.
type Metrics struct {
	mu sync.Mutex

	turnTotal  atomic.Int64
	turnFailed atomic.Int64

	intents map[string]*IntentMetrics
}

// IntentMetrics represents metrics for one intent.
type IntentMetrics struct {
	count         atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{intents: make(map[string]*IntentMetrics)}
}

var globalMetrics = NewMetrics()

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordTurn records a handled turn.
func (m *Metrics) RecordTurn(intent string, duration time.Duration) {
	m.turnTotal.Add(1)
	im := m.intent(intent)
	im.count.Add(1)
	im.totalDuration.Add(duration.Milliseconds())
}

// RecordFailure records a turn that produced an error card.
func (m *Metrics) RecordFailure(intent string) {
	m.turnFailed.Add(1)
	m.intent(intent).errorCount.Add(1)
}

func (m *Metrics) intent(name string) *IntentMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	im, ok := m.intents[name]
	if !ok {
		im = &IntentMetrics{}
		m.intents[name] = im
	}
	return im
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.turnTotal.Store(0)
	m.turnFailed.Store(0)

	m.mu.Lock()
	m.intents = make(map[string]*IntentMetrics)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.intents))
	for name := range m.intents {
		names = append(names, name)
	}
	sort.Strings(names)

	intents := make([]IntentSnapshot, 0, len(names))
	for _, name := range names {
		im := m.intents[name]
		s := IntentSnapshot{
			Intent:     name,
			Count:      im.count.Load(),
			ErrorCount: im.errorCount.Load(),
		}
		if s.Count > 0 {
			s.AverageMs = im.totalDuration.Load() / s.Count
		}
		intents = append(intents, s)
	}

	return &MetricsSnapshot{
		TurnTotal:  m.turnTotal.Load(),
		TurnFailed: m.turnFailed.Load(),
		Intents:    intents,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	TurnTotal  int64            `json:"turn_total"`
	TurnFailed int64            `json:"turn_failed"`
	Intents    []IntentSnapshot `json:"intents"`
}

// IntentSnapshot represents metrics for one intent.
type IntentSnapshot struct {
	Intent     string `json:"intent"`
	Count      int64  `json:"count"`
	ErrorCount int64  `json:"error_count"`
	AverageMs  int64  `json:"average_ms"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.TurnTotal == 0 {
		return 100.0
	}
	return float64(s.TurnTotal-s.TurnFailed) / float64(s.TurnTotal) * 100.0
}
