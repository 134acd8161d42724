// Package ports defines the narrow read interfaces the publication gate
// evaluates. The gate depends on these, never on the source or card
// packages, so the policy layer stays free of storage concerns.
package ports

import (
	"context"

	id "docket/pkg/domain"
)

// SourceReader answers whether a source's bytes are bound by a signed
// manifest. A nonexistent source is reported as not verified, not as an
// error: a reference to a missing source is by definition unverified.
type SourceReader interface {
	IsVerified(ctx context.Context, sourceID id.SourceID) (bool, error)
}

// CitationReader answers whether any published card cites the source.
// Citation rows are written at publish and never deleted, so a true answer
// can never become stale.
type CitationReader interface {
	HasPublishedCitation(ctx context.Context, sourceID id.SourceID) (bool, error)
}
