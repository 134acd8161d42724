package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docket/internal/card/models"
	"docket/internal/card/store"
	"docket/internal/events"
	id "docket/pkg/domain"
	dErrors "docket/pkg/domain-errors"
	"docket/pkg/platform/sentinel"
	"docket/pkg/requestcontext"
)

var tracer = otel.Tracer("docket/internal/card/service")

// The lifecycle operations move a card through the status machine. Every
// operation writes a complete new version row; the ones with public
// consequences (publish, dispute, correct, retract) also commit an outbox
// envelope atomically with it. Legality of a move comes from the transition
// graph alone; the operations here are named entry points over it.

// cardEventPayload is the wire payload of card lifecycle envelopes.
// Consumers needing more than the identity and status fetch the version.
type cardEventPayload struct {
	CardID  string            `json:"card_id"`
	Version int               `json:"version"`
	Status  models.CardStatus `json:"status"`
	Note    string            `json:"note,omitempty"`
}

// SubmitForReview moves a DRAFT card into REVIEW.
func (s *Service) SubmitForReview(ctx context.Context, cardID id.CardID, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	return s.transition(ctx, cardID, models.CardStatusReview, expectedVersion, actor)
}

// ReturnToDraft sends a REVIEW card back for more editing.
func (s *Service) ReturnToDraft(ctx context.Context, cardID id.CardID, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	return s.transition(ctx, cardID, models.CardStatusDraft, expectedVersion, actor)
}

// Archive removes a card from public surfaces. Archived cards keep their
// history and can be restored to DRAFT.
func (s *Service) Archive(ctx context.Context, cardID id.CardID, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	return s.transition(ctx, cardID, models.CardStatusArchived, expectedVersion, actor)
}

// Restore resurrects an ARCHIVED card into DRAFT. The version counter
// continues from where it stopped.
func (s *Service) Restore(ctx context.Context, cardID id.CardID, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	return s.transition(ctx, cardID, models.CardStatusDraft, expectedVersion, actor)
}

// Publish makes the card public. Every cited source must pass the publish
// gate, then the version row, the feed row, the entity rows, the citation
// rows, and the outbox envelope commit as one write. Re-publishing after a
// dispute runs the same fan-out and keeps the original publish date.
func (s *Service) Publish(ctx context.Context, cardID id.CardID, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	ctx, span := tracer.Start(ctx, "card.publish",
		trace.WithAttributes(attribute.String("card.id", cardID.String())))
	defer span.End()

	card, err := s.publish(ctx, cardID, expectedVersion, actor)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("card.version", card.Version),
		attribute.Int("card.sources", len(card.SourceIDs)))
	return card, nil
}

func (s *Service) publish(ctx context.Context, cardID id.CardID, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	current, err := s.loadForWrite(ctx, cardID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(models.CardStatusPublished) {
		return nil, transitionError(current.Status, models.CardStatusPublished)
	}
	if err := s.gate.CanPublish(ctx, current.SourceIDs); err != nil {
		return nil, err
	}

	next := current.NextVersion(actor, now)
	next.ApplyPublish(now)

	env, err := events.NewEnvelope(events.KindCardPublished, next.ID.String(), actor, now, cardEventPayload{
		CardID:  next.ID.String(),
		Version: next.Version,
		Status:  next.Status,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build publish envelope")
	}

	w := store.PublishWrite{Card: next, PublishedAt: now, Envelope: env}
	if err := s.cards.Publish(ctx, w); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.IncrementVersionConflict()
			}
			return nil, dErrors.New(dErrors.CodeConflict, "card was modified concurrently")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish card")
	}
	if s.metrics != nil {
		s.metrics.IncrementVersionAppended()
		s.metrics.IncrementCardPublished()
		s.metrics.ObservePublish(start)
	}
	s.logger.InfoContext(ctx, "card published",
		"card_id", next.ID,
		"version", next.Version,
		"sources", len(next.SourceIDs),
		"entities", len(next.EntityIDs),
		"actor", actor)
	return next, nil
}

// Dispute marks a public card as contested and appends the dispute note to
// the counterpoint history.
func (s *Service) Dispute(ctx context.Context, cardID id.CardID, note string, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	return s.annotatedTransition(ctx, cardID, models.CardStatusDisputed, events.KindCardDisputed, models.CounterpointDispute, note, expectedVersion, actor)
}

// Correct records a material fix on a public card. The correction note
// joins the counterpoint history; the card stays publicly visible.
func (s *Service) Correct(ctx context.Context, cardID id.CardID, note string, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	return s.annotatedTransition(ctx, cardID, models.CardStatusCorrected, events.KindCardCorrected, models.CounterpointCorrection, note, expectedVersion, actor)
}

// Retract withdraws the claim while keeping the card visible with its
// retraction note. Retraction is the end of the public life; only ARCHIVED
// remains.
func (s *Service) Retract(ctx context.Context, cardID id.CardID, note string, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	return s.annotatedTransition(ctx, cardID, models.CardStatusRetracted, events.KindCardRetracted, models.CounterpointRetraction, note, expectedVersion, actor)
}

// transition applies one plain status change as a new version row.
func (s *Service) transition(ctx context.Context, cardID id.CardID, to models.CardStatus, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	now := requestcontext.Now(ctx)
	current, err := s.loadForWrite(ctx, cardID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, transitionError(current.Status, to)
	}
	next := current.NextVersion(actor, now)
	next.Status = to
	if err := s.appendVersion(ctx, next); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "card transitioned",
		"card_id", next.ID,
		"from", current.Status,
		"to", to,
		"version", next.Version,
		"actor", actor)
	return next, nil
}

// annotatedTransition applies a dispute, correction, or retraction: the
// status change plus an appended counterpoint note, with the envelope
// committed atomically with the version row.
func (s *Service) annotatedTransition(ctx context.Context, cardID id.CardID, to models.CardStatus, kind events.Kind, counterpoint models.CounterpointKind, note string, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	if err := models.ValidateCounterpointNote(note); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	current, err := s.loadForWrite(ctx, cardID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, transitionError(current.Status, to)
	}
	next := current.NextVersion(actor, now)
	next.Status = to
	next.AppendCounterpoint(counterpoint, note, now)

	env, err := events.NewEnvelope(kind, next.ID.String(), actor, now, cardEventPayload{
		CardID:  next.ID.String(),
		Version: next.Version,
		Status:  next.Status,
		Note:    note,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build lifecycle envelope")
	}
	if err := s.appendVersion(ctx, next, env); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "card transitioned",
		"card_id", next.ID,
		"from", current.Status,
		"to", to,
		"version", next.Version,
		"actor", actor)
	return next, nil
}

func transitionError(from, to models.CardStatus) error {
	return dErrors.New(dErrors.CodeInvalidStateTransition,
		fmt.Sprintf("cannot transition card from %s to %s", from, to))
}
