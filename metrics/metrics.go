// Package metrics exports blob lifecycle events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/projecteru2/atomblob/progress"
	blobprogress "github.com/projecteru2/atomblob/progress/blob"
)

// compile-time interface check.
var _ progress.Tracker = (*Metrics)(nil)

// Metrics holds the blob collectors. It is a progress.Tracker: pass it to
// blob.WithTracker.
type Metrics struct {
	Opens    *prometheus.CounterVec
	Reloads  *prometheus.CounterVec
	Commits  *prometheus.CounterVec
	Discards prometheus.Counter
	Poisons  prometheus.Counter

	IODuration *prometheus.HistogramVec
}

// New creates the collectors under namespace and registers them with reg.
// A nil reg leaves them unregistered.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Opens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_opens_total",
			Help:      "Blob handles opened, by whether the backing file existed",
		}, []string{"found"}),
		Reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_reloads_total",
			Help:      "Cached copies reloaded from disk after a stale acquisition",
		}, []string{"result"}),
		Commits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_commits_total",
			Help:      "Write view commits, by mode and result",
		}, []string{"mode", "result"}),
		Discards: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_discards_total",
			Help:      "Write views released without commit",
		}),
		Poisons: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_poisoned_total",
			Help:      "Blobs poisoned by a panic during write",
		}),
		IODuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blob_io_duration_seconds",
			Help:      "Time spent reading or writing the backing file",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"phase"}),
	}
}

// OnEvent implements progress.Tracker.
func (m *Metrics) OnEvent(v any) {
	e, ok := v.(blobprogress.Event)
	if !ok {
		return
	}
	switch e.Phase {
	case blobprogress.PhaseOpen:
		m.Opens.WithLabelValues(boolLabel(e.Found)).Inc()
	case blobprogress.PhaseReload:
		m.Reloads.WithLabelValues(resultLabel(e.Err)).Inc()
	case blobprogress.PhaseCommit:
		mode := "explicit"
		if e.Implicit {
			mode = "implicit"
		}
		m.Commits.WithLabelValues(mode, resultLabel(e.Err)).Inc()
	case blobprogress.PhaseDiscard:
		m.Discards.Inc()
	case blobprogress.PhasePoison:
		m.Poisons.Inc()
	}
	if e.Duration > 0 {
		m.IODuration.WithLabelValues(e.Phase.String()).Observe(e.Duration.Seconds())
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
