// Package events carries lifecycle notifications out of the system through a
// transactional outbox. Envelopes are appended in the same transaction as the
// state change they describe and relayed to Kafka by the relay worker, so a
// committed state change is never silently dropped and an aborted one is never
// announced.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "docket/pkg/domain"
)

// Kind identifies the lifecycle event an envelope carries.
type Kind string

const (
	KindSourceVerified Kind = "source.verified"
	KindCardPublished  Kind = "card.published"
	KindCardDisputed   Kind = "card.disputed"
	KindCardCorrected  Kind = "card.corrected"
	KindCardRetracted  Kind = "card.retracted"
)

// Envelope is a single outbox entry. The ID makes redelivery detectable by
// consumers; the AggregateID keys the Kafka record so events for one card or
// source stay ordered within a partition.
type Envelope struct {
	ID          uuid.UUID
	Kind        Kind
	AggregateID string
	Actor       id.ActorID
	OccurredAt  time.Time
	Payload     json.RawMessage
}

// NewEnvelope builds an envelope around a marshalled payload.
func NewEnvelope(kind Kind, aggregateID string, actor id.ActorID, occurredAt time.Time, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Envelope{
		ID:          uuid.New(),
		Kind:        kind,
		AggregateID: aggregateID,
		Actor:       actor,
		OccurredAt:  occurredAt,
		Payload:     body,
	}, nil
}
