package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the card module.
// Tracks version writes, publishes, and lost concurrency races.
type Metrics struct {
	CardsCreated     prometheus.Counter
	VersionsAppended prometheus.Counter
	CardsPublished   prometheus.Counter
	VersionConflicts prometheus.Counter
	PublishDuration  prometheus.Histogram
}

// New creates a new Metrics instance with all card module metrics registered.
func New() *Metrics {
	return &Metrics{
		CardsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_cards_created_total",
			Help: "Total number of evidence cards created",
		}),
		VersionsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_card_versions_appended_total",
			Help: "Total number of card version rows written",
		}),
		CardsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_cards_published_total",
			Help: "Total number of publish operations committed",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docket_card_version_conflicts_total",
			Help: "Total number of writes rejected by the version check",
		}),
		PublishDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docket_card_publish_duration_seconds",
			Help:    "Duration of publish operations (gate check and fan-out included)",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementCardCreated records a successful card creation.
func (m *Metrics) IncrementCardCreated() {
	m.CardsCreated.Inc()
}

// IncrementVersionAppended records a version row written by any operation.
func (m *Metrics) IncrementVersionAppended() {
	m.VersionsAppended.Inc()
}

// IncrementCardPublished records a publish fan-out that committed.
func (m *Metrics) IncrementCardPublished() {
	m.CardsPublished.Inc()
}

// IncrementVersionConflict records a write that lost the version race.
func (m *Metrics) IncrementVersionConflict() {
	m.VersionConflicts.Inc()
}

// ObservePublish records the duration of a publish operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObservePublish(start time.Time) {
	m.PublishDuration.Observe(time.Since(start).Seconds())
}
