package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects per-operation counters for the timetable API.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64
	// rejected counts checks and commits that returned violations.
	rejected atomic.Int64

	operations map[string]*OperationMetrics
}

// OperationMetrics holds the counters of one operation.
type OperationMetrics struct {
	count         atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{operations: make(map[string]*OperationMetrics)}
}

var globalMetrics = NewMetrics()

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordRequest records a finished request of an operation.
func (m *Metrics) RecordRequest(operation string, duration time.Duration, failed bool) {
	m.requestTotal.Add(1)
	om := m.operation(operation)
	om.count.Add(1)
	om.totalDuration.Add(duration.Milliseconds())
	if failed {
		m.requestFailed.Add(1)
		om.errorCount.Add(1)
	}
}

// RecordRejection records a candidate that failed the conflict rules.
func (m *Metrics) RecordRejection() {
	m.rejected.Add(1)
}

func (m *Metrics) operation(name string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operations[name]
	if !ok {
		om = &OperationMetrics{}
		m.operations[name] = om
	}
	return om
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.rejected.Store(0)

	m.mu.Lock()
	m.operations = make(map[string]*OperationMetrics)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make([]OperationSnapshot, 0, len(m.operations))
	for name, om := range m.operations {
		count := om.count.Load()
		snap := OperationSnapshot{
			Operation:  name,
			Count:      count,
			ErrorCount: om.errorCount.Load(),
		}
		if count > 0 {
			snap.AvgLatencyMs = om.totalDuration.Load() / count
		}
		ops = append(ops, snap)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Operation < ops[j].Operation })

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		Rejected:      m.rejected.Load(),
		Operations:    ops,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64               `json:"request_total"`
	RequestFailed int64               `json:"request_failed"`
	Rejected      int64               `json:"rejected"`
	Operations    []OperationSnapshot `json:"operations"`
}

// OperationSnapshot represents the counters of one operation.
type OperationSnapshot struct {
	Operation    string `json:"operation"`
	Count        int64  `json:"count"`
	ErrorCount   int64  `json:"error_count"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
