package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the source module.
// Tracks creation and verification counts plus verification path durations.
type Metrics struct {
	SourcesCreated       prometheus.Counter
	SourcesVerified      prometheus.Counter
	VerificationFailures prometheus.Counter
	DownloadGrants       prometheus.Counter
	FinalizeDuration     prometheus.Histogram
	SnapshotDuration     prometheus.Histogram
}

// New creates a new Metrics instance with all source module metrics registered.
func New() *Metrics {
	return &Metrics{
		SourcesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_sources_created_total",
			Help: "Total number of sources created",
		}),
		SourcesVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_sources_verified_total",
			Help: "Total number of sources verified",
		}),
		VerificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_source_verification_failures_total",
			Help: "Total number of verification attempts marked FAILED",
		}),
		DownloadGrants: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_source_download_grants_total",
			Help: "Total number of download URLs granted",
		}),
		FinalizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docket_source_finalize_duration_seconds",
			Help:    "Duration of Finalize operations (hash, move, sign, persist)",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docket_source_snapshot_duration_seconds",
			Help:    "Duration of CaptureSnapshot operations (fetch included)",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// IncrementSourceCreated records a successful source creation.
func (m *Metrics) IncrementSourceCreated() {
	m.SourcesCreated.Inc()
}

// IncrementSourceVerified records a verification that reached VERIFIED.
func (m *Metrics) IncrementSourceVerified() {
	m.SourcesVerified.Inc()
}

// IncrementVerificationFailure records an attempt that marked the source FAILED.
func (m *Metrics) IncrementVerificationFailure() {
	m.VerificationFailures.Inc()
}

// IncrementDownloadGrant records a download URL passing the gate.
func (m *Metrics) IncrementDownloadGrant() {
	m.DownloadGrants.Inc()
}

// ObserveFinalize records the duration of a Finalize operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveFinalize(start time.Time) {
	m.FinalizeDuration.Observe(time.Since(start).Seconds())
}

// ObserveSnapshot records the duration of a CaptureSnapshot operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSnapshot(start time.Time) {
	m.SnapshotDuration.Observe(time.Since(start).Seconds())
}
