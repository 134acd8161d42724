// Package gate holds the two fail-closed publication predicates.
//
// CanPublish serves authenticated editors and names the offending source.
// CanDownload serves the anonymous public and never explains itself: every
// denial, whatever the cause, is the same ErrSourceNotPublic value.
package gate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"docket/internal/gate/metrics"
	"docket/internal/gate/ports"
	id "docket/pkg/domain"
	dErrors "docket/pkg/domain-errors"
)

// ErrSourceNotPublic is the single undifferentiated download denial. One
// shared value, so indistinguishability across causes holds by construction.
var ErrSourceNotPublic = dErrors.New(dErrors.CodeSourceNotPublic, "source not available")

// publishCheckLimit caps concurrent source lookups per CanPublish call.
const publishCheckLimit = 8

// DecisionCache remembers positive download decisions. Only positives are
// ever stored: a verified, cited source can never become uncited, while a
// cached negative could mask a source that just went public.
type DecisionCache interface {
	GetAllowed(ctx context.Context, sourceID id.SourceID) (bool, error)
	SetAllowed(ctx context.Context, sourceID id.SourceID) error
}

// Engine evaluates the publication predicates over the read ports.
type Engine struct {
	sources   ports.SourceReader
	citations ports.CitationReader
	cache     DecisionCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithDecisionCache enables the positive-decision cache.
func WithDecisionCache(cache DecisionCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// New constructs an Engine.
func New(sources ports.SourceReader, citations ports.CitationReader, opts ...Option) *Engine {
	e := &Engine{
		sources:   sources,
		citations: citations,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CanPublish reports whether every referenced source is verified. Checks
// run concurrently but results are examined in reference order, so the
// first unverified reference is the one named. A card with no references
// passes trivially.
func (e *Engine) CanPublish(ctx context.Context, sourceIDs []id.SourceID) error {
	if len(sourceIDs) == 0 {
		return nil
	}

	results := make([]bool, len(sourceIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(publishCheckLimit)
	for i, sourceID := range sourceIDs {
		g.Go(func() error {
			verified, err := e.sources.IsVerified(gctx, sourceID)
			if err != nil {
				return fmt.Errorf("check source %s: %w", sourceID, err)
			}
			results[i] = verified
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "source verification check failed")
	}

	for i, verified := range results {
		if !verified {
			if e.metrics != nil {
				e.metrics.IncrementPublishDenied()
			}
			return dErrors.New(dErrors.CodeSourceNotVerified, fmt.Sprintf("source %s is not verified", sourceIDs[i]))
		}
	}
	if e.metrics != nil {
		e.metrics.IncrementPublishAllowed()
	}
	return nil
}

// CanDownload reports whether a source is public: VERIFIED and cited by at
// least one published card. Anything else, including infrastructure
// failures, denies with ErrSourceNotPublic. Cache errors degrade to a
// recompute, never to a denial or an allowance.
func (e *Engine) CanDownload(ctx context.Context, sourceID id.SourceID) error {
	if e.cache != nil {
		allowed, err := e.cache.GetAllowed(ctx, sourceID)
		if err != nil {
			e.logger.DebugContext(ctx, "decision cache read failed", "source_id", sourceID, "error", err)
		} else if allowed {
			if e.metrics != nil {
				e.metrics.IncrementCacheHit()
			}
			return nil
		}
	}

	verified, err := e.sources.IsVerified(ctx, sourceID)
	if err != nil {
		e.logger.WarnContext(ctx, "download check failed", "source_id", sourceID, "error", err)
		return ErrSourceNotPublic
	}
	if !verified {
		if e.metrics != nil {
			e.metrics.IncrementDownloadDenied()
		}
		return ErrSourceNotPublic
	}

	cited, err := e.citations.HasPublishedCitation(ctx, sourceID)
	if err != nil {
		e.logger.WarnContext(ctx, "citation check failed", "source_id", sourceID, "error", err)
		return ErrSourceNotPublic
	}
	if !cited {
		if e.metrics != nil {
			e.metrics.IncrementDownloadDenied()
		}
		return ErrSourceNotPublic
	}

	if e.cache != nil {
		if err := e.cache.SetAllowed(ctx, sourceID); err != nil {
			e.logger.DebugContext(ctx, "decision cache write failed", "source_id", sourceID, "error", err)
		}
	}
	if e.metrics != nil {
		e.metrics.IncrementDownloadAllowed()
	}
	return nil
}
