package events

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryEntry struct {
	envelope  Envelope
	published bool
}

// MemoryOutbox is an in-memory Outbox for tests and single-process runs.
type MemoryOutbox struct {
	mu      sync.Mutex
	entries []memoryEntry
	seen    map[uuid.UUID]int
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{seen: make(map[uuid.UUID]int)}
}

func (s *MemoryOutbox) Append(_ context.Context, envelopes ...Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, env := range envelopes {
		if _, ok := s.seen[env.ID]; ok {
			continue
		}
		s.seen[env.ID] = len(s.entries)
		s.entries = append(s.entries, memoryEntry{envelope: env})
	}
	return nil
}

func (s *MemoryOutbox) Pending(_ context.Context, limit int) ([]Envelope, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Envelope
	for _, e := range s.entries {
		if !e.published {
			out = append(out, e.envelope)
		}
	}
	// Entries appended in one batch share a timestamp; the stable sort keeps
	// their append order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryOutbox) MarkPublished(_ context.Context, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, envID := range ids {
		if idx, ok := s.seen[envID]; ok {
			s.entries[idx].published = true
		}
	}
	return nil
}
