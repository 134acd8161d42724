package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docket/internal/card/models"
	"docket/internal/card/store"
	"docket/internal/events"
	id "docket/pkg/domain"
	dErrors "docket/pkg/domain-errors"
	"docket/pkg/requestcontext"
)

// fakeGate records what the publish gate was asked and answers with a
// canned result.
type fakeGate struct {
	err   error
	calls [][]id.SourceID
}

func (g *fakeGate) CanPublish(_ context.Context, sourceIDs []id.SourceID) error {
	g.calls = append(g.calls, sourceIDs)
	return g.err
}

type CardServiceSuite struct {
	suite.Suite
	store  *store.MemoryStore
	outbox *events.MemoryOutbox
	gate   *fakeGate
	svc    *Service
	now    time.Time
	actor  id.ActorID
}

func (s *CardServiceSuite) SetupTest() {
	s.outbox = events.NewMemoryOutbox()
	s.store = store.NewMemory(s.outbox)
	s.gate = &fakeGate{}
	s.svc = New(s.store, s.gate)
	s.now = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	s.actor = id.ActorID("editor-1")
}

func TestCardServiceSuite(t *testing.T) {
	suite.Run(t, new(CardServiceSuite))
}

func (s *CardServiceSuite) ctx() context.Context {
	return s.ctxAt(s.now)
}

func (s *CardServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *CardServiceSuite) validAttrs() models.CardAttrs {
	return models.CardAttrs{
		Title:     "Acme backdated safety reports",
		Claim:     "Acme Corp backdated factory safety reports filed with the state regulator.",
		Category:  "regulatory",
		EntityIDs: []id.EntityID{id.EntityID(uuid.New())},
		SourceIDs: []id.SourceID{id.SourceID(uuid.New()), id.SourceID(uuid.New())},
		Strength:  models.StrengthStrong,
	}
}

func (s *CardServiceSuite) createCard() *models.EvidenceCard {
	card, err := s.svc.Create(s.ctx(), s.validAttrs(), s.actor)
	s.Require().NoError(err)
	return card
}

// publishCard walks a fresh draft through review to PUBLISHED.
func (s *CardServiceSuite) publishCard() *models.EvidenceCard {
	card := s.createCard()
	card, err := s.svc.SubmitForReview(s.ctx(), card.ID, card.Version, s.actor)
	s.Require().NoError(err)
	card, err = s.svc.Publish(s.ctx(), card.ID, card.Version, s.actor)
	s.Require().NoError(err)
	return card
}

func (s *CardServiceSuite) pendingEnvelopes() []events.Envelope {
	pending, err := s.outbox.Pending(s.ctx(), 100)
	s.Require().NoError(err)
	return pending
}

func (s *CardServiceSuite) TestCreate() {
	card := s.createCard()
	s.Equal(models.CardStatusDraft, card.Status)
	s.Equal(1, card.Version)

	stored, err := s.svc.GetCurrent(s.ctx(), card.ID)
	s.Require().NoError(err)
	s.Equal(card.ID, stored.ID)

	s.Empty(s.pendingEnvelopes(), "creation is not a public event")
}

func (s *CardServiceSuite) TestCreateValidates() {
	attrs := s.validAttrs()
	attrs.Title = ""
	_, err := s.svc.Create(s.ctx(), attrs, s.actor)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *CardServiceSuite) TestUpdateWritesFullSnapshot() {
	card := s.createCard()

	attrs := s.validAttrs()
	attrs.Title = "Acme backdated safety reports, amended"
	attrs.Tags = []string{"amended"}
	updated, err := s.svc.Update(s.ctx(), card.ID, attrs, card.Version, s.actor)
	s.Require().NoError(err)
	s.Equal(2, updated.Version)
	s.Equal(attrs.Title, updated.Title)

	// The first version still renders exactly as written.
	v1, err := s.svc.GetVersion(s.ctx(), card.ID, 1)
	s.Require().NoError(err)
	s.Equal(card.Title, v1.Title)
	s.Empty(v1.Tags)
}

func (s *CardServiceSuite) TestUpdateStaleVersionConflicts() {
	card := s.createCard()
	_, err := s.svc.Update(s.ctx(), card.ID, s.validAttrs(), card.Version, s.actor)
	s.Require().NoError(err)

	_, err = s.svc.Update(s.ctx(), card.ID, s.validAttrs(), card.Version, s.actor)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *CardServiceSuite) TestUpdateRequiresEditableStatus() {
	card := s.publishCard()
	_, err := s.svc.Update(s.ctx(), card.ID, s.validAttrs(), card.Version, s.actor)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
}

func (s *CardServiceSuite) TestSubmitAndReturn() {
	card := s.createCard()

	reviewed, err := s.svc.SubmitForReview(s.ctx(), card.ID, card.Version, s.actor)
	s.Require().NoError(err)
	s.Equal(models.CardStatusReview, reviewed.Status)
	s.Equal(2, reviewed.Version)

	back, err := s.svc.ReturnToDraft(s.ctx(), reviewed.ID, reviewed.Version, s.actor)
	s.Require().NoError(err)
	s.Equal(models.CardStatusDraft, back.Status)
	s.Equal(3, back.Version)
}

func (s *CardServiceSuite) TestPublish() {
	card := s.createCard()
	reviewed, err := s.svc.SubmitForReview(s.ctx(), card.ID, card.Version, s.actor)
	s.Require().NoError(err)

	published, err := s.svc.Publish(s.ctx(), reviewed.ID, reviewed.Version, s.actor)
	s.Require().NoError(err)
	s.Equal(models.CardStatusPublished, published.Status)
	s.Equal(3, published.Version)
	s.Require().NotNil(published.PublishDate)
	s.Equal(s.now, *published.PublishDate)

	s.Require().Len(s.gate.calls, 1)
	s.Equal(card.SourceIDs, s.gate.calls[0], "gate sees citations in reference order")

	feed, err := s.svc.ListFeed(s.ctx(), 0)
	s.Require().NoError(err)
	s.Require().Len(feed, 1)
	s.Equal(published.ID, feed[0].ID)

	for _, sourceID := range card.SourceIDs {
		cited, err := s.svc.IsReferencedByPublishedCard(s.ctx(), sourceID)
		s.Require().NoError(err)
		s.True(cited)
	}

	pending := s.pendingEnvelopes()
	s.Require().Len(pending, 1)
	s.Equal(events.KindCardPublished, pending[0].Kind)
	s.Equal(published.ID.String(), pending[0].AggregateID)
	s.Contains(string(pending[0].Payload), `"status":"PUBLISHED"`)
}

func (s *CardServiceSuite) TestPublishDeniedByGate() {
	card := s.createCard()
	reviewed, err := s.svc.SubmitForReview(s.ctx(), card.ID, card.Version, s.actor)
	s.Require().NoError(err)

	s.gate.err = dErrors.New(dErrors.CodeSourceNotVerified, "source is not verified")
	_, err = s.svc.Publish(s.ctx(), reviewed.ID, reviewed.Version, s.actor)
	s.True(dErrors.HasCode(err, dErrors.CodeSourceNotVerified))

	current, err := s.svc.GetCurrent(s.ctx(), card.ID)
	s.Require().NoError(err)
	s.Equal(models.CardStatusReview, current.Status, "denied publish leaves the card in REVIEW")

	feed, err := s.svc.ListFeed(s.ctx(), 0)
	s.Require().NoError(err)
	s.Empty(feed)
	s.Empty(s.pendingEnvelopes())
}

func (s *CardServiceSuite) TestPublishFromDraftRejected() {
	card := s.createCard()
	_, err := s.svc.Publish(s.ctx(), card.ID, card.Version, s.actor)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
	s.Empty(s.gate.calls, "gate is not consulted for an illegal transition")
}

func (s *CardServiceSuite) TestDispute() {
	card := s.publishCard()

	disputed, err := s.svc.Dispute(s.ctx(), card.ID, "Filing dates contradicted by court records.", card.Version, s.actor)
	s.Require().NoError(err)
	s.Equal(models.CardStatusDisputed, disputed.Status)
	s.Equal(card.Version+1, disputed.Version)
	s.Contains(disputed.Counterpoint, "[Dispute 2025-06-10T09:00:00Z]: Filing dates contradicted by court records.")
	s.Equal(*card.PublishDate, *disputed.PublishDate)

	// The feed row fanned out at publish is a snapshot; the dispute does
	// not rewrite it.
	feed, err := s.svc.ListFeed(s.ctx(), 0)
	s.Require().NoError(err)
	s.Require().Len(feed, 1)
	s.Equal(models.CardStatusPublished, feed[0].Status)
	s.Equal(card.Version, feed[0].Version)

	pending := s.pendingEnvelopes()
	s.Require().Len(pending, 2)
	s.Equal(events.KindCardDisputed, pending[1].Kind)
	s.Contains(string(pending[1].Payload), `"note":"Filing dates contradicted by court records."`)
}

func (s *CardServiceSuite) TestRepublishAfterDispute() {
	card := s.publishCard()
	disputed, err := s.svc.Dispute(s.ctx(), card.ID, "Contested by subject.", card.Version, s.actor)
	s.Require().NoError(err)

	laterCtx := s.ctxAt(s.now.Add(72 * time.Hour))
	republished, err := s.svc.Publish(laterCtx, disputed.ID, disputed.Version, s.actor)
	s.Require().NoError(err)
	s.Equal(models.CardStatusPublished, republished.Status)
	s.Equal(*card.PublishDate, *republished.PublishDate, "publish date is set exactly once")

	feed, err := s.svc.ListFeed(laterCtx, 0)
	s.Require().NoError(err)
	s.Len(feed, 2, "re-publish fans out a new feed row")
}

func (s *CardServiceSuite) TestCorrectThenRetract() {
	card := s.publishCard()

	corrected, err := s.svc.Correct(s.ctx(), card.ID, "Corrected the filing year from 2023 to 2024.", card.Version, s.actor)
	s.Require().NoError(err)
	s.Equal(models.CardStatusCorrected, corrected.Status)

	retracted, err := s.svc.Retract(s.ctx(), corrected.ID, "Primary filing could not be authenticated.", corrected.Version, s.actor)
	s.Require().NoError(err)
	s.Equal(models.CardStatusRetracted, retracted.Status)
	s.Contains(retracted.Counterpoint, "[Correction ")
	s.Contains(retracted.Counterpoint, "[Retraction ")

	// RETRACTED only archives; disputing it is illegal.
	_, err = s.svc.Dispute(s.ctx(), retracted.ID, "Too late.", retracted.Version, s.actor)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))

	kinds := []events.Kind{}
	for _, env := range s.pendingEnvelopes() {
		kinds = append(kinds, env.Kind)
	}
	s.Equal([]events.Kind{events.KindCardPublished, events.KindCardCorrected, events.KindCardRetracted}, kinds)
}

func (s *CardServiceSuite) TestAnnotationRequiresNote() {
	card := s.publishCard()
	_, err := s.svc.Dispute(s.ctx(), card.ID, "   ", card.Version, s.actor)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	current, err := s.svc.GetCurrent(s.ctx(), card.ID)
	s.Require().NoError(err)
	s.Equal(card.Version, current.Version, "rejected note writes nothing")
}

func (s *CardServiceSuite) TestArchiveAndRestore() {
	card := s.publishCard()

	archived, err := s.svc.Archive(s.ctx(), card.ID, card.Version, s.actor)
	s.Require().NoError(err)
	s.Equal(models.CardStatusArchived, archived.Status)

	restored, err := s.svc.Restore(s.ctx(), archived.ID, archived.Version, s.actor)
	s.Require().NoError(err)
	s.Equal(models.CardStatusDraft, restored.Status)
	s.Equal(archived.Version+1, restored.Version, "the version counter survives resurrection")

	versions, err := s.svc.ListVersions(s.ctx(), card.ID)
	s.Require().NoError(err)
	for i, v := range versions {
		s.Equal(i+1, v.Version, "history is gapless")
	}
}

func (s *CardServiceSuite) TestListAdmin() {
	first := s.createCard()
	_, err := s.svc.Update(s.ctx(), first.ID, s.validAttrs(), first.Version, s.actor)
	s.Require().NoError(err)
	published := s.publishCard()

	all, err := s.svc.ListAdmin(s.ctx(), nil)
	s.Require().NoError(err)
	s.Len(all, 2, "each card appears once at its current version")

	status := models.CardStatusPublished
	onlyPublished, err := s.svc.ListAdmin(s.ctx(), &status)
	s.Require().NoError(err)
	s.Require().Len(onlyPublished, 1)
	s.Equal(published.ID, onlyPublished[0].ID)

	status = models.CardStatusDraft
	drafts, err := s.svc.ListAdmin(s.ctx(), &status)
	s.Require().NoError(err)
	s.Require().Len(drafts, 1)
	s.Equal(first.ID, drafts[0].ID)
	s.Equal(2, drafts[0].Version, "the filter sees the current version, not history")
}

// TestListFeedMonthRollover verifies the feed only serves the current UTC
// month; last month's publishes disappear from the default view.
func (s *CardServiceSuite) TestListFeedMonthRollover() {
	s.publishCard()

	julyCtx := s.ctxAt(time.Date(2025, 7, 1, 0, 30, 0, 0, time.UTC))
	feed, err := s.svc.ListFeed(julyCtx, 0)
	s.Require().NoError(err)
	s.Empty(feed)

	juneFeed, err := s.svc.ListFeed(s.ctx(), 0)
	s.Require().NoError(err)
	s.Len(juneFeed, 1)
}

func (s *CardServiceSuite) TestListByEntity() {
	entityID := id.EntityID(uuid.New())

	attrs := s.validAttrs()
	attrs.EntityIDs = []id.EntityID{entityID}
	card, err := s.svc.Create(s.ctx(), attrs, s.actor)
	s.Require().NoError(err)
	card, err = s.svc.SubmitForReview(s.ctx(), card.ID, card.Version, s.actor)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx(), card.ID, card.Version, s.actor)
	s.Require().NoError(err)

	s.publishCard() // unrelated entity

	rows, err := s.svc.ListByEntity(s.ctx(), entityID, 0)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(card.ID, rows[0].ID)
}

// TestCitationPermanence verifies retraction does not release the source:
// the citation record outlives the card's public life.
func (s *CardServiceSuite) TestCitationPermanence() {
	sourceID := id.SourceID(uuid.New())
	attrs := s.validAttrs()
	attrs.SourceIDs = []id.SourceID{sourceID}

	cited, err := s.svc.IsReferencedByPublishedCard(s.ctx(), sourceID)
	s.Require().NoError(err)
	s.False(cited, "a draft citation is not a published citation")

	card, err := s.svc.Create(s.ctx(), attrs, s.actor)
	s.Require().NoError(err)
	card, err = s.svc.SubmitForReview(s.ctx(), card.ID, card.Version, s.actor)
	s.Require().NoError(err)
	card, err = s.svc.Publish(s.ctx(), card.ID, card.Version, s.actor)
	s.Require().NoError(err)

	cited, err = s.svc.IsReferencedByPublishedCard(s.ctx(), sourceID)
	s.Require().NoError(err)
	s.True(cited)

	_, err = s.svc.Retract(s.ctx(), card.ID, "Withdrawn pending re-verification.", card.Version, s.actor)
	s.Require().NoError(err)

	cited, err = s.svc.IsReferencedByPublishedCard(s.ctx(), sourceID)
	s.Require().NoError(err)
	s.True(cited)

	citations, err := s.svc.ListCitations(s.ctx(), sourceID)
	s.Require().NoError(err)
	s.Equal([]id.CardID{card.ID}, citations)
}

func (s *CardServiceSuite) TestReadsNotFound() {
	_, err := s.svc.GetCurrent(s.ctx(), id.CardID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.GetVersion(s.ctx(), id.CardID(uuid.New()), 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.ListVersions(s.ctx(), id.CardID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	card := s.createCard()
	_, err = s.svc.GetVersion(s.ctx(), card.ID, 7)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
