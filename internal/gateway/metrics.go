package gateway

import "sync/atomic"

// Metrics tracks gateway-level counters using atomic operations for lock-free concurrency.
type Metrics struct {
	webhooks   atomic.Int64
	rejected   atomic.Int64
	errors     atomic.Int64
	manualRuns atomic.Int64
}

// RecordWebhook records an accepted webhook delivery.
func (m *Metrics) RecordWebhook() { m.webhooks.Add(1) }

// RecordRejected records a webhook refused for a bad signature or payload.
func (m *Metrics) RecordRejected() { m.rejected.Add(1) }

// RecordError records a handler failure.
func (m *Metrics) RecordError() { m.errors.Add(1) }

// RecordManualRun records a job run requested through the admin API.
func (m *Metrics) RecordManualRun() { m.manualRuns.Add(1) }

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Webhooks:   m.webhooks.Load(),
		Rejected:   m.rejected.Load(),
		Errors:     m.errors.Load(),
		ManualRuns: m.manualRuns.Load(),
	}
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Webhooks   int64 `json:"webhooks"`
	Rejected   int64 `json:"rejected"`
	Errors     int64 `json:"errors"`
	ManualRuns int64 `json:"manual_runs"`
}
