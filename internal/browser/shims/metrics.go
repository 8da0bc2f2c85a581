// File: internal/browser/shims/metrics.go
package shims

import "sync/atomic"

// Metrics counts what the page did during one execution. Counters are
// atomics because the debug sampler reads them while scripts run and the
// engine reads them after the loop stops.
type Metrics struct {
	TimersScheduled    atomic.Int64
	TimersFired        atomic.Int64
	FetchCalls         atomic.Int64
	XHRCalls           atomic.Int64
	DOMMutations       atomic.Int64
	ListenersAdded     atomic.Int64
	StorageWrites      atomic.Int64
	ConsoleCalls       atomic.Int64
	NavigationAttempts atomic.Int64
}

// MetricsSnapshot is a plain-value copy of Metrics for logging and tests.
type MetricsSnapshot struct {
	TimersScheduled    int64 `json:"timersScheduled"`
	TimersFired        int64 `json:"timersFired"`
	FetchCalls         int64 `json:"fetchCalls"`
	XHRCalls           int64 `json:"xhrCalls"`
	DOMMutations       int64 `json:"domMutations"`
	ListenersAdded     int64 `json:"listenersAdded"`
	StorageWrites      int64 `json:"storageWrites"`
	ConsoleCalls       int64 `json:"consoleCalls"`
	NavigationAttempts int64 `json:"navigationAttempts"`
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TimersScheduled:    m.TimersScheduled.Load(),
		TimersFired:        m.TimersFired.Load(),
		FetchCalls:         m.FetchCalls.Load(),
		XHRCalls:           m.XHRCalls.Load(),
		DOMMutations:       m.DOMMutations.Load(),
		ListenersAdded:     m.ListenersAdded.Load(),
		StorageWrites:      m.StorageWrites.Load(),
		ConsoleCalls:       m.ConsoleCalls.Load(),
		NavigationAttempts: m.NavigationAttempts.Load(),
	}
}
