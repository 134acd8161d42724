package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docket/internal/events"
	"docket/internal/source/models"
	id "docket/pkg/domain"
	"docket/pkg/platform/sentinel"
)

type SourceMemoryStoreSuite struct {
	suite.Suite
	store  *MemoryStore
	outbox *events.MemoryOutbox
	ctx    context.Context
	now    time.Time
	actor  id.ActorID
}

func (s *SourceMemoryStoreSuite) SetupTest() {
	s.outbox = events.NewMemoryOutbox()
	s.store = NewMemory(s.outbox)
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.actor = id.ActorID("analyst-1")
}

func TestSourceMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(SourceMemoryStoreSuite))
}

func (s *SourceMemoryStoreSuite) newSource() *models.Source {
	src, err := models.NewSource(id.SourceID(uuid.New()), "Q3 safety filing", "State Register", "https://register.example.gov/filings/814", models.SourceKindFiling, s.actor, s.now)
	s.Require().NoError(err)
	return src
}

func (s *SourceMemoryStoreSuite) verified(src *models.Source) *models.Source {
	out := *src
	out.ApplyVerification(models.VerificationResult{
		Digest:      "deadbeef",
		ByteSize:    2048,
		MimeType:    "application/pdf",
		StorageKey:  FinalKey(src.ID, "deadbeef", "pdf"),
		ManifestKey: ManifestKey(src.ID, "deadbeef"),
		Signature:   "sig",
		KeyID:       "key-1",
		Algorithm:   "Ed25519",
		RetrievedAt: s.now,
		VerifiedAt:  s.now,
	}, s.actor, s.now)
	return &out
}

func (s *SourceMemoryStoreSuite) envelope(src *models.Source) events.Envelope {
	env, err := events.NewEnvelope(events.KindSourceVerified, src.ID.String(), s.actor, s.now, map[string]string{"source_id": src.ID.String()})
	s.Require().NoError(err)
	return env
}

func (s *SourceMemoryStoreSuite) TestCreateAndGet() {
	src := s.newSource()
	s.Require().NoError(s.store.Create(s.ctx, src))

	got, err := s.store.Get(s.ctx, src.ID)
	s.Require().NoError(err)
	s.Equal(src.Title, got.Title)
	s.Equal(models.SourceStatusPending, got.Status)

	s.ErrorIs(s.store.Create(s.ctx, src), sentinel.ErrConflict)

	_, err = s.store.Get(s.ctx, id.SourceID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Run("reads return copies", func() {
		got, err := s.store.Get(s.ctx, src.ID)
		s.Require().NoError(err)
		got.Title = "mutated"
		again, err := s.store.Get(s.ctx, src.ID)
		s.Require().NoError(err)
		s.Equal(src.Title, again.Title)
	})
}

func (s *SourceMemoryStoreSuite) TestSaveVerification() {
	src := s.newSource()
	s.Require().NoError(s.store.Create(s.ctx, src))

	verified := s.verified(src)
	env := s.envelope(src)
	s.Require().NoError(s.store.SaveVerification(s.ctx, verified, env))

	got, err := s.store.Get(s.ctx, src.ID)
	s.Require().NoError(err)
	s.Equal(models.SourceStatusVerified, got.Status)
	s.Equal("sha256:deadbeef", got.ContentHash)

	pending, err := s.outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(env.ID, pending[0].ID)

	s.Run("second settle loses", func() {
		err := s.store.SaveVerification(s.ctx, verified, s.envelope(src))
		s.ErrorIs(err, sentinel.ErrConflict)
		pending, err := s.outbox.Pending(s.ctx, 10)
		s.Require().NoError(err)
		s.Len(pending, 1, "a lost settle appends nothing")
	})
}

func (s *SourceMemoryStoreSuite) TestSaveVerificationMissingSource() {
	src := s.newSource()
	err := s.store.SaveVerification(s.ctx, s.verified(src), s.envelope(src))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestMarkFailed verifies failure writes touch only status, reason, and the
// update stamps, leaving prior verification fields alone.
func (s *SourceMemoryStoreSuite) TestMarkFailed() {
	src := s.newSource()
	s.Require().NoError(s.store.Create(s.ctx, src))

	failed := *src
	failed.ApplyFailure("no staged upload found", s.actor, s.now.Add(time.Minute))
	s.Require().NoError(s.store.MarkFailed(s.ctx, &failed))

	got, err := s.store.Get(s.ctx, src.ID)
	s.Require().NoError(err)
	s.Equal(models.SourceStatusFailed, got.Status)
	s.Equal("no staged upload found", got.FailureReason)

	s.Run("verified source rejects failure writes", func() {
		s.Require().NoError(s.store.SaveVerification(s.ctx, s.verified(src), s.envelope(src)))
		again := *src
		again.ApplyFailure("late failure", s.actor, s.now.Add(time.Hour))
		s.ErrorIs(s.store.MarkFailed(s.ctx, &again), sentinel.ErrConflict)

		got, err := s.store.Get(s.ctx, src.ID)
		s.Require().NoError(err)
		s.Equal(models.SourceStatusVerified, got.Status, "a settled verification is never overwritten")
	})
}

func (s *SourceMemoryStoreSuite) TestList() {
	first := s.newSource()
	second, err := models.NewSource(id.SourceID(uuid.New()), "Annual report", "Acme Corp", "https://acme.example.com/annual.pdf", models.SourceKindReport, s.actor, s.now.Add(time.Minute))
	s.Require().NoError(err)

	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, first))

	out, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal(first.ID, out[0].ID, "listing is in creation order")
	s.Equal(second.ID, out[1].ID)
}

type SourceKeysSuite struct {
	suite.Suite
}

func TestSourceKeysSuite(t *testing.T) {
	suite.Run(t, new(SourceKeysSuite))
}

func (s *SourceKeysSuite) TestDerivations() {
	sourceID, err := id.ParseSourceID("5f3c1a2b-0000-4000-8000-000000000001")
	s.Require().NoError(err)

	s.Equal("staging/5f3c1a2b-0000-4000-8000-000000000001.pdf", StagingKey(sourceID, "pdf"))
	s.Equal("sources/5f3c1a2b-0000-4000-8000-000000000001/deadbeef.pdf", FinalKey(sourceID, "deadbeef", "pdf"))
	s.Equal("sources/5f3c1a2b-0000-4000-8000-000000000001/deadbeef.manifest.json", ManifestKey(sourceID, "deadbeef"))
}

// TestContentAddressing verifies the property the finalize saga relies on:
// same bytes, same key; different bytes, different key.
func (s *SourceKeysSuite) TestContentAddressing() {
	sourceID := id.SourceID(uuid.New())
	s.Equal(FinalKey(sourceID, "aa11", "pdf"), FinalKey(sourceID, "aa11", "pdf"))
	s.NotEqual(FinalKey(sourceID, "aa11", "pdf"), FinalKey(sourceID, "bb22", "pdf"))
}
