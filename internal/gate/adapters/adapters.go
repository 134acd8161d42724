// Package adapters binds the source and card stores to the gate's read
// ports in-process. Splitting either context out later means replacing an
// adapter, not touching the gate.
package adapters

import (
	"context"
	"errors"

	"docket/internal/gate/ports"
	"docket/internal/source/models"
	id "docket/pkg/domain"
	"docket/pkg/platform/sentinel"
)

type sourceGetter interface {
	Get(ctx context.Context, sourceID id.SourceID) (*models.Source, error)
}

// SourceReaderAdapter answers verification checks from the source store.
type SourceReaderAdapter struct {
	sources sourceGetter
}

// NewSourceReader adapts the source store to ports.SourceReader.
func NewSourceReader(sources sourceGetter) ports.SourceReader {
	return &SourceReaderAdapter{sources: sources}
}

// IsVerified reports VERIFIED status. A missing source is not verified
// rather than an error.
func (a *SourceReaderAdapter) IsVerified(ctx context.Context, sourceID id.SourceID) (bool, error) {
	src, err := a.sources.Get(ctx, sourceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return src.IsVerified(), nil
}

type citationChecker interface {
	HasPublishedCitation(ctx context.Context, sourceID id.SourceID) (bool, error)
}

// CitationReaderAdapter answers citation checks from the card store's
// citation index.
type CitationReaderAdapter struct {
	citations citationChecker
}

// NewCitationReader adapts the card store to ports.CitationReader.
func NewCitationReader(citations citationChecker) ports.CitationReader {
	return &CitationReaderAdapter{citations: citations}
}

func (a *CitationReaderAdapter) HasPublishedCitation(ctx context.Context, sourceID id.SourceID) (bool, error) {
	return a.citations.HasPublishedCitation(ctx, sourceID)
}
