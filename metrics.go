package authcore

import "sync/atomic"

// MetricID identifies a counter in the in-process metrics system.
type MetricID int

const (
	// MetricLoginSuccess counts fully authenticated logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts denied logins of any kind.
	MetricLoginFailure
	// MetricLoginLocked counts logins refused by an active lockout window.
	MetricLoginLocked
	// MetricMFARequired counts password successes that produced a challenge.
	MetricMFARequired
	// MetricMFASuccess counts completed MFA challenges.
	MetricMFASuccess
	// MetricMFAFailure counts rejected MFA codes and challenges.
	MetricMFAFailure
	// MetricBackupCodeUsed counts consumed backup codes.
	MetricBackupCodeUsed
	// MetricBackupCodeFailed counts backup codes that matched nothing.
	MetricBackupCodeFailed
	// MetricRegisterSuccess counts created accounts.
	MetricRegisterSuccess
	// MetricRegisterDuplicate counts registrations rejected for a taken email.
	MetricRegisterDuplicate
	// MetricPasswordResetRequest counts issued reset tokens.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess counts completed resets.
	MetricPasswordResetSuccess
	// MetricEmailVerified counts completed email verifications.
	MetricEmailVerified
	// MetricFederatedLogin counts federated sign-ins, including first logins.
	MetricFederatedLogin
	// MetricProviderLinked counts provider link operations.
	MetricProviderLinked
	// MetricProviderUnlinked counts provider unlink operations.
	MetricProviderUnlinked

	metricIDCount
)

// Metrics holds atomic counters. When disabled, all operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics creates a Metrics instance configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot returns a deep copy of the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
