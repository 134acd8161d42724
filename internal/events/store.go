package events

import (
	"context"

	"github.com/google/uuid"
)

// Outbox persists envelopes alongside the state changes that produce them.
// Append participates in an ambient transaction when the caller opened one;
// Pending and MarkPublished are used by the relay outside any transaction.
type Outbox interface {
	Append(ctx context.Context, envelopes ...Envelope) error
	Pending(ctx context.Context, limit int) ([]Envelope, error)
	MarkPublished(ctx context.Context, ids ...uuid.UUID) error
}
