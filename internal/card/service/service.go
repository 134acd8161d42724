package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"docket/internal/card/metrics"
	"docket/internal/card/models"
	"docket/internal/card/store"
	"docket/internal/events"
	id "docket/pkg/domain"
	dErrors "docket/pkg/domain-errors"
	"docket/pkg/platform/sentinel"
	"docket/pkg/requestcontext"
)

// CardStore is the slice of the card store this service needs.
type CardStore interface {
	AppendVersion(ctx context.Context, card *models.EvidenceCard, envelopes ...events.Envelope) error
	Publish(ctx context.Context, w store.PublishWrite) error
	GetCurrent(ctx context.Context, cardID id.CardID) (*models.EvidenceCard, error)
	GetVersion(ctx context.Context, cardID id.CardID, version int) (*models.EvidenceCard, error)
	ListVersions(ctx context.Context, cardID id.CardID) ([]*models.EvidenceCard, error)
	ScanVersions(ctx context.Context) ([]*models.EvidenceCard, error)
	ListFeed(ctx context.Context, bucket string, limit int) ([]*models.EvidenceCard, error)
	ListByEntity(ctx context.Context, entityID id.EntityID, limit int) ([]*models.EvidenceCard, error)
	HasPublishedCitation(ctx context.Context, sourceID id.SourceID) (bool, error)
	ListCitations(ctx context.Context, sourceID id.SourceID) ([]id.CardID, error)
}

// PublishGate checks every cited source before a card goes public. A nil
// error means all citations are verified; the gate's error names the first
// unverified source in reference order.
type PublishGate interface {
	CanPublish(ctx context.Context, sourceIDs []id.SourceID) error
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service owns the card lifecycle: versioned content edits, the status
// machine, the gated publish fan-out, and the public read surfaces.
type Service struct {
	cards   CardStore
	gate    PublishGate
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(cards CardStore, publishGate PublishGate, opts ...Option) *Service {
	s := &Service{
		cards:  cards,
		gate:   publishGate,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create writes version 1 of a new card in DRAFT.
func (s *Service) Create(ctx context.Context, attrs models.CardAttrs, actor id.ActorID) (*models.EvidenceCard, error) {
	now := requestcontext.Now(ctx)
	card, err := models.NewCard(id.CardID(uuid.New()), attrs, actor, now)
	if err != nil {
		return nil, err
	}
	if err := s.appendVersion(ctx, card); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementCardCreated()
	}
	s.logger.InfoContext(ctx, "card created", "card_id", card.ID, "actor", actor)
	return card, nil
}

// Update replaces the card's content with a full new snapshot. Only DRAFT
// and REVIEW cards accept edits; published content changes go through the
// lifecycle operations instead.
func (s *Service) Update(ctx context.Context, cardID id.CardID, attrs models.CardAttrs, expectedVersion int, actor id.ActorID) (*models.EvidenceCard, error) {
	now := requestcontext.Now(ctx)
	current, err := s.loadForWrite(ctx, cardID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if err := current.CanEdit(); err != nil {
		return nil, err
	}
	next := current.NextVersion(actor, now)
	if err := next.ApplyAttrs(attrs); err != nil {
		return nil, err
	}
	if err := s.appendVersion(ctx, next); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "card updated", "card_id", next.ID, "version", next.Version, "actor", actor)
	return next, nil
}

// GetCurrent returns the latest version of a card.
func (s *Service) GetCurrent(ctx context.Context, cardID id.CardID) (*models.EvidenceCard, error) {
	return s.getCard(ctx, cardID)
}

// GetVersion returns one historical version of a card.
func (s *Service) GetVersion(ctx context.Context, cardID id.CardID, version int) (*models.EvidenceCard, error) {
	card, err := s.cards.GetVersion(ctx, cardID, version)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "card version not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load card version")
	}
	return card, nil
}

// ListVersions returns the full version history of a card, oldest first.
func (s *Service) ListVersions(ctx context.Context, cardID id.CardID) ([]*models.EvidenceCard, error) {
	versions, err := s.cards.ListVersions(ctx, cardID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "card not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list card versions")
	}
	return versions, nil
}

// ListAdmin returns the current version of every card, optionally filtered
// by status. The filter applies to the current status, so the scan reduces
// to latest-per-card before filtering.
func (s *Service) ListAdmin(ctx context.Context, status *models.CardStatus) ([]*models.EvidenceCard, error) {
	versions, err := s.cards.ScanVersions(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan cards")
	}
	latest := make(map[id.CardID]*models.EvidenceCard, len(versions))
	for _, card := range versions {
		if cur, ok := latest[card.ID]; ok && cur.Version >= card.Version {
			continue
		}
		latest[card.ID] = card
	}
	out := make([]*models.EvidenceCard, 0, len(latest))
	for _, card := range latest {
		if status != nil && card.Status != *status {
			continue
		}
		out = append(out, card)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListFeed returns the public feed for the current UTC month, newest
// publish first. Entries are the snapshots taken at publish time; later
// lifecycle changes do not rewrite them.
func (s *Service) ListFeed(ctx context.Context, limit int) ([]*models.EvidenceCard, error) {
	bucket := store.FeedBucket(requestcontext.Now(ctx))
	cards, err := s.cards.ListFeed(ctx, bucket, clampLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list feed")
	}
	return cards, nil
}

// ListByEntity returns publish snapshots referencing one entity, newest
// first.
func (s *Service) ListByEntity(ctx context.Context, entityID id.EntityID, limit int) ([]*models.EvidenceCard, error) {
	cards, err := s.cards.ListByEntity(ctx, entityID, clampLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cards by entity")
	}
	return cards, nil
}

// IsReferencedByPublishedCard reports whether any card ever published a
// citation of the source. Citation rows are never deleted, so a true
// answer is permanent.
func (s *Service) IsReferencedByPublishedCard(ctx context.Context, sourceID id.SourceID) (bool, error) {
	cited, err := s.cards.HasPublishedCitation(ctx, sourceID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check citations")
	}
	return cited, nil
}

// ListCitations returns the ids of every card that published a citation of
// the source, ordered by first publish.
func (s *Service) ListCitations(ctx context.Context, sourceID id.SourceID) ([]id.CardID, error) {
	cardIDs, err := s.cards.ListCitations(ctx, sourceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list citations")
	}
	return cardIDs, nil
}

func (s *Service) getCard(ctx context.Context, cardID id.CardID) (*models.EvidenceCard, error) {
	card, err := s.cards.GetCurrent(ctx, cardID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "card not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load card")
	}
	return card, nil
}

// loadForWrite fetches the current version and enforces the caller's
// optimistic concurrency expectation before any mutation is attempted.
func (s *Service) loadForWrite(ctx context.Context, cardID id.CardID, expectedVersion int) (*models.EvidenceCard, error) {
	current, err := s.getCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("card is at version %d, expected %d", current.Version, expectedVersion))
	}
	return current, nil
}

// appendVersion writes the next version row and translates a lost race
// into Conflict. The check in loadForWrite is advisory; the store's
// conditional insert is what actually arbitrates concurrent writers.
func (s *Service) appendVersion(ctx context.Context, card *models.EvidenceCard, envelopes ...events.Envelope) error {
	if err := s.cards.AppendVersion(ctx, card, envelopes...); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.IncrementVersionConflict()
			}
			return dErrors.New(dErrors.CodeConflict, "card was modified concurrently")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write card version")
	}
	if s.metrics != nil {
		s.metrics.IncrementVersionAppended()
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
