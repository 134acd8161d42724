package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the publication gate.
// Tracks allow/deny counts for both predicates and decision cache hits.
type Metrics struct {
	PublishAllowed  prometheus.Counter
	PublishDenied   prometheus.Counter
	DownloadAllowed prometheus.Counter
	DownloadDenied  prometheus.Counter
	CacheHits       prometheus.Counter
}

// New creates a new Metrics instance with all gate metrics registered.
func New() *Metrics {
	return &Metrics{
		PublishAllowed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_gate_publish_allowed_total",
			Help: "Total number of CanPublish checks that passed",
		}),
		PublishDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_gate_publish_denied_total",
			Help: "Total number of CanPublish checks denied on an unverified source",
		}),
		DownloadAllowed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_gate_download_allowed_total",
			Help: "Total number of CanDownload checks that passed",
		}),
		DownloadDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_gate_download_denied_total",
			Help: "Total number of CanDownload checks denied",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_gate_decision_cache_hits_total",
			Help: "Total number of download decisions served from the cache",
		}),
	}
}

// IncrementPublishAllowed records a CanPublish pass.
func (m *Metrics) IncrementPublishAllowed() {
	m.PublishAllowed.Inc()
}

// IncrementPublishDenied records a CanPublish denial.
func (m *Metrics) IncrementPublishDenied() {
	m.PublishDenied.Inc()
}

// IncrementDownloadAllowed records a CanDownload pass.
func (m *Metrics) IncrementDownloadAllowed() {
	m.DownloadAllowed.Inc()
}

// IncrementDownloadDenied records a CanDownload denial.
func (m *Metrics) IncrementDownloadDenied() {
	m.DownloadDenied.Inc()
}

// IncrementCacheHit records a cached positive decision.
func (m *Metrics) IncrementCacheHit() {
	m.CacheHits.Inc()
}
