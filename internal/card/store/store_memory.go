package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"docket/internal/card/models"
	"docket/internal/events"
	id "docket/pkg/domain"
	"docket/pkg/platform/sentinel"
)

// indexRow is one fan-out row in a feed or entity partition: the card
// snapshot taken at publish plus its sort key. Rows are immutable once
// written; later lifecycle changes produce new rows, never updates.
type indexRow struct {
	sortKey     string
	publishedAt time.Time
	card        models.EvidenceCard
}

// MemoryStore is an in-memory card store for tests and single-process runs.
// Partitions are keyed with the same derivations the relational store maps
// onto columns. Writes are all-or-nothing: conditions are checked before
// anything mutates, matching the transactional semantics of the Postgres
// store.
type MemoryStore struct {
	mu        sync.RWMutex
	versions  map[string][]models.EvidenceCard
	feed      map[string][]indexRow
	entities  map[string][]indexRow
	citations map[string]map[id.CardID]time.Time
	outbox    events.Outbox
}

func NewMemory(outbox events.Outbox) *MemoryStore {
	return &MemoryStore{
		versions:  make(map[string][]models.EvidenceCard),
		feed:      make(map[string][]indexRow),
		entities:  make(map[string][]indexRow),
		citations: make(map[string]map[id.CardID]time.Time),
		outbox:    outbox,
	}
}

// AppendVersion inserts the card as the next version row, conditional on
// that version not existing yet. Versions are gapless, so the condition
// reduces to the partition currently holding exactly version-1 rows; a
// writer that lost a concurrent race lands on an occupied version and gets
// ErrConflict. Envelopes, if any, are appended atomically with the row.
func (s *MemoryStore) AppendVersion(ctx context.Context, card *models.EvidenceCard, envelopes ...events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	part := CardPartition(card.ID)
	if card.Version != len(s.versions[part])+1 {
		return sentinel.ErrConflict
	}
	if len(envelopes) > 0 {
		if err := s.outbox.Append(ctx, envelopes...); err != nil {
			return err
		}
	}
	s.versions[part] = append(s.versions[part], *card.Clone())
	return nil
}

// Publish applies the whole publish fan-out under one lock: version row,
// feed row, entity rows, citation rows, and the outbox envelope. The
// version condition is checked first, so a lost race leaves every index
// untouched.
func (s *MemoryStore) Publish(ctx context.Context, w PublishWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card := w.Card
	part := CardPartition(card.ID)
	if card.Version != len(s.versions[part])+1 {
		return sentinel.ErrConflict
	}
	if err := s.outbox.Append(ctx, w.Envelope); err != nil {
		return err
	}

	s.versions[part] = append(s.versions[part], *card.Clone())

	row := indexRow{
		sortKey:     PublishSort(w.PublishedAt, card.ID),
		publishedAt: w.PublishedAt,
		card:        *card.Clone(),
	}
	feedPart := FeedPartition(FeedBucket(w.PublishedAt))
	s.feed[feedPart] = append(s.feed[feedPart], row)
	for _, entityID := range card.EntityIDs {
		entityPart := EntityPartition(entityID)
		s.entities[entityPart] = append(s.entities[entityPart], row)
	}

	for _, sourceID := range card.SourceIDs {
		citePart := CitationPartition(sourceID)
		if s.citations[citePart] == nil {
			s.citations[citePart] = make(map[id.CardID]time.Time)
		}
		// First publish wins; the citation keeps its original timestamp
		// across re-publishes.
		if _, ok := s.citations[citePart][card.ID]; !ok {
			s.citations[citePart][card.ID] = w.PublishedAt
		}
	}
	return nil
}

func (s *MemoryStore) GetCurrent(_ context.Context, cardID id.CardID) (*models.EvidenceCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.versions[CardPartition(cardID)]
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return rows[len(rows)-1].Clone(), nil
}

func (s *MemoryStore) GetVersion(_ context.Context, cardID id.CardID, version int) (*models.EvidenceCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.versions[CardPartition(cardID)]
	if version < 1 || version > len(rows) {
		return nil, sentinel.ErrNotFound
	}
	return rows[version-1].Clone(), nil
}

func (s *MemoryStore) ListVersions(_ context.Context, cardID id.CardID) ([]*models.EvidenceCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.versions[CardPartition(cardID)]
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	out := make([]*models.EvidenceCard, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Clone())
	}
	return out, nil
}

// ScanVersions returns every version row of every card, ordered by card
// then version.
func (s *MemoryStore) ScanVersions(_ context.Context) ([]*models.EvidenceCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts := make([]string, 0, len(s.versions))
	for part := range s.versions {
		parts = append(parts, part)
	}
	sort.Strings(parts)
	var out []*models.EvidenceCard
	for _, part := range parts {
		for i := range s.versions[part] {
			out = append(out, s.versions[part][i].Clone())
		}
	}
	return out, nil
}

// ListFeed returns the publish snapshots in one month bucket, newest
// first. A limit of zero or less means no limit.
func (s *MemoryStore) ListFeed(_ context.Context, bucket string, limit int) ([]*models.EvidenceCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collectRows(s.feed[FeedPartition(bucket)], limit), nil
}

// ListByEntity returns the publish snapshots referencing one entity,
// newest first. A limit of zero or less means no limit.
func (s *MemoryStore) ListByEntity(_ context.Context, entityID id.EntityID, limit int) ([]*models.EvidenceCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collectRows(s.entities[EntityPartition(entityID)], limit), nil
}

func (s *MemoryStore) HasPublishedCitation(_ context.Context, sourceID id.SourceID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.citations[CitationPartition(sourceID)]) > 0, nil
}

// ListCitations returns the ids of all cards that ever published a citation
// of the source, ordered by first publish.
func (s *MemoryStore) ListCitations(_ context.Context, sourceID id.SourceID) ([]id.CardID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cites := s.citations[CitationPartition(sourceID)]
	out := make([]id.CardID, 0, len(cites))
	for cardID := range cites {
		out = append(out, cardID)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := cites[out[i]], cites[out[j]]
		if ti.Equal(tj) {
			return out[i].String() < out[j].String()
		}
		return ti.Before(tj)
	})
	return out, nil
}

// collectRows orders a partition newest first and applies the limit. Rows
// are compared on the stored timestamp; the sort key string is a tiebreak
// only.
func collectRows(rows []indexRow, limit int) []*models.EvidenceCard {
	sorted := make([]indexRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].publishedAt.Equal(sorted[j].publishedAt) {
			return sorted[i].sortKey > sorted[j].sortKey
		}
		return sorted[i].publishedAt.After(sorted[j].publishedAt)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]*models.EvidenceCard, 0, len(sorted))
	for i := range sorted {
		out = append(out, sorted[i].card.Clone())
	}
	return out
}
