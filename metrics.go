package stacvalidator

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks validation run metrics using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	// Request counts
	requestsTotal   atomic.Uint64
	requestsRetried atomic.Uint64
	requestsFailed  atomic.Uint64

	// Timing (stored as nanoseconds)
	requestTimeTotal atomic.Uint64

	// Finding counts by severity
	passTotal atomic.Uint64
	warnTotal atomic.Uint64
	failTotal atomic.Uint64
	skipTotal atomic.Uint64

	// Per-check timing
	checkTiming sync.Map // map[string]*checkMetrics
}

// checkMetrics tracks metrics for a single check battery.
type checkMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64 // nanoseconds
	findings    atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records one HTTP probe.
func (m *Metrics) RecordRequest(duration time.Duration, retried, failed bool) {
	m.requestsTotal.Add(1)
	m.requestTimeTotal.Add(uint64(duration.Nanoseconds()))
	if retried {
		m.requestsRetried.Add(1)
	}
	if failed {
		m.requestsFailed.Add(1)
	}
}

// RecordFinding records a finding by severity.
func (m *Metrics) RecordFinding(severity Severity) {
	switch severity {
	case SeverityPass:
		m.passTotal.Add(1)
	case SeverityWarn:
		m.warnTotal.Add(1)
	case SeverityFail:
		m.failTotal.Add(1)
	case SeveritySkip:
		m.skipTotal.Add(1)
	}
}

// RecordCheck records one check battery execution.
func (m *Metrics) RecordCheck(checkID string, duration time.Duration, findings int) {
	v, _ := m.checkTiming.LoadOrStore(checkID, &checkMetrics{})
	cm := v.(*checkMetrics)
	cm.invocations.Add(1)
	cm.totalTime.Add(uint64(duration.Nanoseconds()))
	cm.findings.Add(uint64(findings))
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	RequestsTotal   uint64
	RequestsRetried uint64
	RequestsFailed  uint64
	RequestTime     time.Duration
	Pass            uint64
	Warn            uint64
	Fail            uint64
	Skip            uint64
	Checks          map[string]CheckSnapshot
}

// CheckSnapshot holds per-check metrics.
type CheckSnapshot struct {
	Invocations uint64
	TotalTime   time.Duration
	Findings    uint64
}

// Snapshot returns a copy of the current metric values.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		RequestsTotal:   m.requestsTotal.Load(),
		RequestsRetried: m.requestsRetried.Load(),
		RequestsFailed:  m.requestsFailed.Load(),
		RequestTime:     time.Duration(m.requestTimeTotal.Load()),
		Pass:            m.passTotal.Load(),
		Warn:            m.warnTotal.Load(),
		Fail:            m.failTotal.Load(),
		Skip:            m.skipTotal.Load(),
		Checks:          make(map[string]CheckSnapshot),
	}
	m.checkTiming.Range(func(key, value any) bool {
		cm := value.(*checkMetrics)
		s.Checks[key.(string)] = CheckSnapshot{
			Invocations: cm.invocations.Load(),
			TotalTime:   time.Duration(cm.totalTime.Load()),
			Findings:    cm.findings.Load(),
		}
		return true
	})
	return s
}
