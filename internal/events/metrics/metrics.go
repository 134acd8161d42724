package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the outbox relay.
// Tracks published envelope counts, relay failures, and outbox lag.
type Metrics struct {
	EnvelopesPublished prometheus.Counter
	RelayFailures      prometheus.Counter
	PendingEnvelopes   prometheus.Gauge
}

// New creates a new Metrics instance with all relay metrics registered.
func New() *Metrics {
	return &Metrics{
		EnvelopesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_outbox_envelopes_published_total",
			Help: "Total number of outbox envelopes relayed to Kafka",
		}),
		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_outbox_relay_failures_total",
			Help: "Total number of failed relay drain attempts",
		}),
		PendingEnvelopes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "docket_outbox_pending_envelopes",
			Help: "Envelopes observed pending at the start of the last drain",
		}),
	}
}

// AddPublished records envelopes successfully relayed to Kafka.
func (m *Metrics) AddPublished(n int) {
	m.EnvelopesPublished.Add(float64(n))
}

// IncrementRelayFailure records a drain attempt that returned an error.
func (m *Metrics) IncrementRelayFailure() {
	m.RelayFailures.Inc()
}

// SetPending records the pending backlog seen by a drain.
func (m *Metrics) SetPending(n int) {
	m.PendingEnvelopes.Set(float64(n))
}
