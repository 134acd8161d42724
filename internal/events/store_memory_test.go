package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "docket/pkg/domain"
)

type MemoryOutboxSuite struct {
	suite.Suite
	outbox *MemoryOutbox
	ctx    context.Context
}

func (s *MemoryOutboxSuite) SetupTest() {
	s.outbox = NewMemoryOutbox()
	s.ctx = context.Background()
}

func TestMemoryOutboxSuite(t *testing.T) {
	suite.Run(t, new(MemoryOutboxSuite))
}

func (s *MemoryOutboxSuite) newEnvelope(kind Kind, occurredAt time.Time) Envelope {
	env, err := NewEnvelope(kind, uuid.NewString(), id.ActorID("analyst-1"), occurredAt, map[string]string{"reason": "test"})
	s.Require().NoError(err)
	return env
}

// TestAppendAndPending verifies envelopes come back oldest first.
func (s *MemoryOutboxSuite) TestAppendAndPending() {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	later := s.newEnvelope(KindCardPublished, base.Add(time.Minute))
	earlier := s.newEnvelope(KindSourceVerified, base)

	s.Require().NoError(s.outbox.Append(s.ctx, later))
	s.Require().NoError(s.outbox.Append(s.ctx, earlier))

	pending, err := s.outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(earlier.ID, pending[0].ID)
	s.Equal(later.ID, pending[1].ID)
}

// TestAppendIdempotent verifies a redelivered envelope is stored once.
func (s *MemoryOutboxSuite) TestAppendIdempotent() {
	env := s.newEnvelope(KindCardRetracted, time.Now())

	s.Require().NoError(s.outbox.Append(s.ctx, env))
	s.Require().NoError(s.outbox.Append(s.ctx, env))

	pending, err := s.outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

// TestPendingLimit verifies the batch cap and that a non-positive limit
// yields nothing.
func (s *MemoryOutboxSuite) TestPendingLimit() {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		env := s.newEnvelope(KindCardPublished, base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.outbox.Append(s.ctx, env))
	}

	pending, err := s.outbox.Pending(s.ctx, 3)
	s.Require().NoError(err)
	s.Len(pending, 3)

	pending, err = s.outbox.Pending(s.ctx, 0)
	s.Require().NoError(err)
	s.Empty(pending)
}

// TestMarkPublished verifies published envelopes drop out of Pending and
// unknown IDs are ignored.
func (s *MemoryOutboxSuite) TestMarkPublished() {
	first := s.newEnvelope(KindCardDisputed, time.Now())
	second := s.newEnvelope(KindCardCorrected, time.Now().Add(time.Second))
	s.Require().NoError(s.outbox.Append(s.ctx, first, second))

	s.Require().NoError(s.outbox.MarkPublished(s.ctx, first.ID, uuid.New()))

	pending, err := s.outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(second.ID, pending[0].ID)

	s.Run("marking twice stays settled", func() {
		s.Require().NoError(s.outbox.MarkPublished(s.ctx, first.ID))
		pending, err := s.outbox.Pending(s.ctx, 10)
		s.Require().NoError(err)
		s.Len(pending, 1)
	})
}

// TestEnvelopeCarriesPayload verifies NewEnvelope round-trips the payload.
func (s *MemoryOutboxSuite) TestEnvelopeCarriesPayload() {
	env, err := NewEnvelope(KindCardPublished, "card-1", id.ActorID("editor-9"), time.Now(), map[string]int{"version": 3})
	s.Require().NoError(err)
	s.Equal(KindCardPublished, env.Kind)
	s.Equal("card-1", env.AggregateID)
	s.JSONEq(`{"version":3}`, string(env.Payload))
	s.False(env.ID == uuid.Nil)
}
