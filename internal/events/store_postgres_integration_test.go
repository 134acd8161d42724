//go:build integration

package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docket/internal/events"
	id "docket/pkg/domain"
	txcontext "docket/pkg/platform/tx"
	"docket/pkg/testutil/containers"
)

type OutboxPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	outbox   *events.PostgresOutbox
	ctx      context.Context
	now      time.Time
}

func TestOutboxPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxPostgresSuite))
}

func (s *OutboxPostgresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.outbox = events.NewPostgresOutbox(s.postgres.DB)
}

func (s *OutboxPostgresSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "outbox"))
}

func (s *OutboxPostgresSuite) envelope(at time.Time) events.Envelope {
	env, err := events.NewEnvelope(events.KindCardPublished, uuid.NewString(), id.ActorID("editor-1"), at, map[string]string{"v": "1"})
	s.Require().NoError(err)
	return env
}

func (s *OutboxPostgresSuite) TestAppendIsIdempotent() {
	env := s.envelope(s.now)
	s.Require().NoError(s.outbox.Append(s.ctx, env))
	s.Require().NoError(s.outbox.Append(s.ctx, env))

	pending, err := s.outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *OutboxPostgresSuite) TestPendingOrdersOldestFirst() {
	late := s.envelope(s.now.Add(time.Minute))
	early := s.envelope(s.now)
	s.Require().NoError(s.outbox.Append(s.ctx, late, early))

	pending, err := s.outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(early.ID, pending[0].ID)
	s.Equal(late.ID, pending[1].ID)

	limited, err := s.outbox.Pending(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(limited, 1)
	s.Equal(early.ID, limited[0].ID)
}

func (s *OutboxPostgresSuite) TestMarkPublished() {
	first := s.envelope(s.now)
	second := s.envelope(s.now.Add(time.Second))
	s.Require().NoError(s.outbox.Append(s.ctx, first, second))

	s.Require().NoError(s.outbox.MarkPublished(s.ctx, first.ID))

	pending, err := s.outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(second.ID, pending[0].ID)
}

// TestAppendJoinsCallerTransaction verifies an envelope appended inside a
// caller transaction shares its fate: rollback drops it, commit lands it.
func (s *OutboxPostgresSuite) TestAppendJoinsCallerTransaction() {
	s.Run("rollback drops the envelope", func() {
		tx, err := s.postgres.DB.BeginTx(s.ctx, nil)
		s.Require().NoError(err)
		s.Require().NoError(s.outbox.Append(txcontext.WithTx(s.ctx, tx), s.envelope(s.now)))
		s.Require().NoError(tx.Rollback())

		pending, err := s.outbox.Pending(s.ctx, 10)
		s.Require().NoError(err)
		s.Empty(pending)
	})

	s.Run("commit lands the envelope", func() {
		env := s.envelope(s.now)
		tx, err := s.postgres.DB.BeginTx(s.ctx, nil)
		s.Require().NoError(err)
		s.Require().NoError(s.outbox.Append(txcontext.WithTx(s.ctx, tx), env))
		s.Require().NoError(tx.Commit())

		pending, err := s.outbox.Pending(s.ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(env.ID, pending[0].ID)
	})
}

func (s *OutboxPostgresSuite) TestPayloadSurvivesRoundTrip() {
	env, err := events.NewEnvelope(events.KindSourceVerified, uuid.NewString(), id.ActorID("analyst-1"), s.now,
		map[string]any{"content_hash": "sha256:abc", "byte_size": 2048})
	s.Require().NoError(err)
	s.Require().NoError(s.outbox.Append(s.ctx, env))

	pending, err := s.outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(events.KindSourceVerified, pending[0].Kind)
	s.Equal(env.AggregateID, pending[0].AggregateID)
	s.Equal(id.ActorID("analyst-1"), pending[0].Actor)
	s.JSONEq(string(env.Payload), string(pending[0].Payload))
	s.True(pending[0].OccurredAt.Equal(s.now))
}
