package store

import (
	"context"
	"sort"
	"sync"

	"docket/internal/events"
	"docket/internal/source/models"
	id "docket/pkg/domain"
	"docket/pkg/platform/sentinel"
)

// MemoryStore is an in-memory source store for tests and single-process
// runs. Writes are all-or-nothing: conditions are checked before anything
// mutates, matching the conditional-write semantics of the Postgres store.
type MemoryStore struct {
	mu      sync.RWMutex
	sources map[id.SourceID]models.Source
	outbox  events.Outbox
}

func NewMemory(outbox events.Outbox) *MemoryStore {
	return &MemoryStore{
		sources: make(map[id.SourceID]models.Source),
		outbox:  outbox,
	}
}

func (s *MemoryStore) Create(_ context.Context, src *models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[src.ID]; ok {
		return sentinel.ErrConflict
	}
	s.sources[src.ID] = *src
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sourceID id.SourceID) (*models.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[sourceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := src
	return &out, nil
}

// SaveVerification persists a verified source together with its outbox
// envelope. Conditional on the stored status still being verifiable, so a
// concurrently settled verification is never overwritten.
func (s *MemoryStore) SaveVerification(ctx context.Context, src *models.Source, env events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sources[src.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !stored.Status.Verifiable() {
		return sentinel.ErrConflict
	}
	if err := s.outbox.Append(ctx, env); err != nil {
		return err
	}
	s.sources[src.ID] = *src
	return nil
}

// MarkFailed records a failed verification attempt. Only the status, the
// reason, and the update stamps change; verification fields from any prior
// attempt are left alone, matching the column-targeted SQL update.
func (s *MemoryStore) MarkFailed(_ context.Context, src *models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sources[src.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !stored.Status.Verifiable() {
		return sentinel.ErrConflict
	}
	stored.Status = src.Status
	stored.FailureReason = src.FailureReason
	stored.UpdatedAt = src.UpdatedAt
	stored.UpdatedBy = src.UpdatedBy
	s.sources[src.ID] = stored
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Source, 0, len(s.sources))
	for _, src := range s.sources {
		c := src
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
