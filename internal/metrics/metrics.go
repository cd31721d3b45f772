// Package metrics defines the minimal metrics surface the migration engine
// emits to. The core code depends only on Backend; concrete sinks (Datadog,
// or a test fake) are wired at process start via SetBackend.
package metrics

import "sync"

// Labels are free-form metric dimensions (e.g. {"collection": "users"}).
type Labels map[string]string

// Backend receives metric events. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
	Close() error
}

// nopBackend drops everything. It is the default so code can emit metrics
// unconditionally.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }
func (nopBackend) Close() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Pass nil to restore the
// no-op default.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of a named distribution.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush forces buffered metrics out to the sink.
func Flush() error {
	return current().Flush()
}

// Metric names emitted by the migration engine.
const (
	MetricRowsTotal        = "migrate_rows_total"
	MetricBatchesTotal     = "migrate_batches_total"
	MetricCollectionsTotal = "migrate_collections_total"
	MetricStageSeconds     = "migrate_stage_duration_seconds"
)

// RecordRows counts rows by outcome kind ("inserted", "skipped", "read").
func RecordRows(collection, kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(MetricRowsTotal, float64(n), Labels{"collection": collection, "kind": kind})
}

// RecordBatch counts one batch flush by status ("ok", "fallback").
func RecordBatch(collection, status string) {
	IncCounter(MetricBatchesTotal, 1, Labels{"collection": collection, "status": status})
}

// RecordCollection counts one finished collection by status ("done", "failed").
func RecordCollection(status string) {
	IncCounter(MetricCollectionsTotal, 1, Labels{"status": status})
}

// RecordStage records one stage duration in seconds by stage and status.
func RecordStage(stage, status string, seconds float64) {
	ObserveHistogram(MetricStageSeconds, seconds, Labels{"stage": stage, "status": status})
}
