package store

import (
	"time"

	"docket/internal/card/models"
	"docket/internal/events"
)

// PublishWrite is the atomic fan-out for one publish: the new PUBLISHED
// version row, one feed row in the month bucket of the publish time, one
// row per referenced entity, one citation row per cited source, and the
// outbox envelope. A store applies all of it or none of it; partial
// fan-out would let a public surface show a card whose version row lost
// the race.
//
// PublishedAt is the time of this publish operation. It drives the feed
// bucket and row ordering, and it is distinct from the card's PublishDate,
// which keeps the time of the first publish across re-publishes.
type PublishWrite struct {
	Card        *models.EvidenceCard
	PublishedAt time.Time
	Envelope    events.Envelope
}
