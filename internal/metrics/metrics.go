// Package metrics holds the engine's in-process event counters. Counters
// are lock-free and safe for concurrent request handlers; when disabled,
// every operation is a no-op.
package metrics

import "sync/atomic"

// MetricID identifies a specific counter.
type MetricID uint8

const (
	MetricSignupRequested MetricID = iota
	MetricSignupRejected
	MetricOTPVerified
	MetricOTPRejected
	MetricUserCreated
	MetricLoginSuccess
	MetricLoginFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReplayDetected
	MetricLogout
	MetricSessionCreated
	MetricSessionRevoked
	MetricFederatedLogin
	MetricProviderConflict
	MetricStoreUnavailable
	MetricMailEnqueued
	MetricMailFailed

	MetricIDCount
)

// Metrics is a fixed-size set of atomic counters.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]atomic.Uint64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

// New creates a Metrics instance. A nil receiver and a disabled instance
// behave identically.
func New(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns the current value of the counter for id.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a deep copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	snapshot := Snapshot{Counters: make(map[MetricID]uint64, MetricIDCount)}
	if m == nil {
		return snapshot
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		snapshot.Counters[id] = m.counters[id].Load()
	}
	return snapshot
}
