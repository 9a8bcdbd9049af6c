package stacvalidator

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsRecordRequest(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest(100*time.Millisecond, false, false)
	m.RecordRequest(200*time.Millisecond, true, false)
	m.RecordRequest(50*time.Millisecond, true, true)

	snap := m.Snapshot()
	if snap.RequestsTotal != 3 {
		t.Errorf("RequestsTotal = %d; want 3", snap.RequestsTotal)
	}
	if snap.RequestsRetried != 2 {
		t.Errorf("RequestsRetried = %d; want 2", snap.RequestsRetried)
	}
	if snap.RequestsFailed != 1 {
		t.Errorf("RequestsFailed = %d; want 1", snap.RequestsFailed)
	}
	if snap.RequestTime != 350*time.Millisecond {
		t.Errorf("RequestTime = %v; want 350ms", snap.RequestTime)
	}
}

func TestMetricsRecordFinding(t *testing.T) {
	m := NewMetrics()
	m.RecordFinding(SeverityPass)
	m.RecordFinding(SeverityPass)
	m.RecordFinding(SeverityFail)
	m.RecordFinding(SeverityWarn)
	m.RecordFinding(SeveritySkip)

	snap := m.Snapshot()
	if snap.Pass != 2 {
		t.Errorf("Pass = %d; want 2", snap.Pass)
	}
	if snap.Warn != 1 {
		t.Errorf("Warn = %d; want 1", snap.Warn)
	}
	if snap.Fail != 1 {
		t.Errorf("Fail = %d; want 1", snap.Fail)
	}
	if snap.Skip != 1 {
		t.Errorf("Skip = %d; want 1", snap.Skip)
	}
}

func TestMetricsRecordCheck(t *testing.T) {
	m := NewMetrics()
	m.RecordCheck("search.limit", 2*time.Second, 8)
	m.RecordCheck("search.limit", time.Second, 4)
	m.RecordCheck("core.landing", time.Second, 3)

	snap := m.Snapshot()
	cs, ok := snap.Checks["search.limit"]
	if !ok {
		t.Fatal("missing search.limit check metrics")
	}
	if cs.Invocations != 2 {
		t.Errorf("Invocations = %d; want 2", cs.Invocations)
	}
	if cs.Findings != 12 {
		t.Errorf("Findings = %d; want 12", cs.Findings)
	}
	if cs.TotalTime != 3*time.Second {
		t.Errorf("TotalTime = %v; want 3s", cs.TotalTime)
	}
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordRequest(time.Millisecond, false, false)
				m.RecordFinding(SeverityPass)
				m.RecordCheck("search.limit", time.Millisecond, 1)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.RequestsTotal != 800 {
		t.Errorf("RequestsTotal = %d; want 800", snap.RequestsTotal)
	}
	if snap.Pass != 800 {
		t.Errorf("Pass = %d; want 800", snap.Pass)
	}
	if snap.Checks["search.limit"].Invocations != 800 {
		t.Errorf("Invocations = %d; want 800", snap.Checks["search.limit"].Invocations)
	}
}
