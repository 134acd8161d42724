package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"docket/internal/events"
	"docket/internal/gate"
	"docket/internal/objectstore"
	"docket/internal/signing"
	"docket/internal/source/metrics"
	"docket/internal/source/models"
	"docket/internal/source/store"
	id "docket/pkg/domain"
	dErrors "docket/pkg/domain-errors"
	"docket/pkg/platform/sentinel"
	"docket/pkg/requestcontext"
)

// SourceStore is the slice of the document store this service needs.
type SourceStore interface {
	Create(ctx context.Context, src *models.Source) error
	Get(ctx context.Context, sourceID id.SourceID) (*models.Source, error)
	SaveVerification(ctx context.Context, src *models.Source, env events.Envelope) error
	MarkFailed(ctx context.Context, src *models.Source) error
	List(ctx context.Context) ([]*models.Source, error)
}

// DownloadGate decides whether a source is publicly downloadable. A nil
// error means allowed; any other outcome is the undifferentiated
// gate.ErrSourceNotPublic.
type DownloadGate interface {
	CanDownload(ctx context.Context, sourceID id.SourceID) error
}

const defaultGrantTTL = 15 * time.Minute

// Service owns the source lifecycle: creation, staged uploads, the
// verification saga, and the public download gate entry point.
type Service struct {
	sources     SourceStore
	objects     objectstore.Store
	signer      signing.Signer
	gate        DownloadGate
	fetcher     SnapshotFetcher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	uploadTTL   time.Duration
	downloadTTL time.Duration
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

func WithFetcher(f SnapshotFetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithGrantTTL sets the lifetime of presigned upload and download URLs.
func WithGrantTTL(d time.Duration) Option {
	return func(s *Service) {
		s.uploadTTL = d
		s.downloadTTL = d
	}
}

// New constructs a Service.
func New(sources SourceStore, objects objectstore.Store, signer signing.Signer, downloadGate DownloadGate, opts ...Option) *Service {
	s := &Service{
		sources:     sources,
		objects:     objects,
		signer:      signer,
		gate:        downloadGate,
		fetcher:     NewHTTPFetcher(),
		logger:      slog.Default(),
		uploadTTL:   defaultGrantTTL,
		downloadTTL: defaultGrantTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries pre-validated transport input for a new source.
type CreateInput struct {
	Title     string
	Publisher string
	OriginURL string
	Kind      models.SourceKind
}

func (s *Service) Create(ctx context.Context, in CreateInput, actor id.ActorID) (*models.Source, error) {
	now := requestcontext.Now(ctx)
	src, err := models.NewSource(id.SourceID(uuid.New()), in.Title, in.Publisher, in.OriginURL, in.Kind, actor, now)
	if err != nil {
		return nil, err
	}
	if err := s.sources.Create(ctx, src); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "source already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create source")
	}
	if s.metrics != nil {
		s.metrics.IncrementSourceCreated()
	}
	s.logger.InfoContext(ctx, "source created", "source_id", src.ID, "kind", src.Kind, "actor", actor)
	return src, nil
}

// UploadTarget is a short-lived write grant for a staged upload.
type UploadTarget struct {
	URL     string
	Key     string
	Method  string
	Expires time.Time
}

// RequestUpload hands out a presigned PUT for the staging key. The MIME
// allow-list is checked before any store access so a disallowed type never
// touches storage.
func (s *Service) RequestUpload(ctx context.Context, sourceID id.SourceID, declaredContentType string, actor id.ActorID) (*UploadTarget, error) {
	ext, ok := models.ExtensionForMime(declaredContentType)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidMimeType, fmt.Sprintf("content type %q is not allowed", declaredContentType))
	}
	src, err := s.getSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := src.CanAcceptUpload(); err != nil {
		return nil, err
	}

	key := store.StagingKey(src.ID, ext)
	presigned, err := s.objects.PresignPut(ctx, key, declaredContentType, s.uploadTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to presign upload")
	}
	s.logger.InfoContext(ctx, "upload requested", "source_id", src.ID, "key", key, "actor", actor)
	return &UploadTarget{
		URL:     presigned.URL,
		Key:     key,
		Method:  presigned.Method,
		Expires: presigned.Expires,
	}, nil
}

// DownloadGrant is a short-lived public read grant for verified, cited
// source bytes.
type DownloadGrant struct {
	URL      string
	Expires  time.Time
	Filename string
}

// GenerateDownloadURL is the fail-closed public entry point. Every failure,
// from a missing source to a presigner outage, surfaces as the same
// gate.ErrSourceNotPublic so callers cannot probe source state.
func (s *Service) GenerateDownloadURL(ctx context.Context, sourceID id.SourceID) (*DownloadGrant, error) {
	if err := s.gate.CanDownload(ctx, sourceID); err != nil {
		return nil, gate.ErrSourceNotPublic
	}
	src, err := s.sources.Get(ctx, sourceID)
	if err != nil {
		return nil, gate.ErrSourceNotPublic
	}
	if !src.IsVerified() || src.StorageKey == "" {
		return nil, gate.ErrSourceNotPublic
	}

	ext, ok := models.ExtensionForMime(src.MimeType)
	if !ok {
		return nil, gate.ErrSourceNotPublic
	}
	filename := sanitizeFilename(src.Title) + "." + ext
	presigned, err := s.objects.PresignGet(ctx, src.StorageKey, filename, s.downloadTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "download presign failed", "source_id", src.ID, "error", err)
		return nil, gate.ErrSourceNotPublic
	}
	if s.metrics != nil {
		s.metrics.IncrementDownloadGrant()
	}
	return &DownloadGrant{
		URL:      presigned.URL,
		Expires:  presigned.Expires,
		Filename: filename,
	}, nil
}

// VerificationReport is the public verification metadata for a source, with
// everything a third party needs to independently re-verify: fetch the
// manifest object at ManifestKey, fetch the public key for KeyID, check the
// signature over the exact stored bytes.
type VerificationReport struct {
	SourceID    id.SourceID
	Status      models.SourceStatus
	ContentHash string
	ByteSize    int64
	MimeType    string
	ManifestKey string
	Signature   string
	KeyID       string
	Algorithm   string
}

func (s *Service) GetVerification(ctx context.Context, sourceID id.SourceID) (*VerificationReport, error) {
	src, err := s.getSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return &VerificationReport{
		SourceID:    src.ID,
		Status:      src.Status,
		ContentHash: src.ContentHash,
		ByteSize:    src.ByteSize,
		MimeType:    src.MimeType,
		ManifestKey: src.ManifestKey,
		Signature:   src.Signature,
		KeyID:       src.KeyID,
		Algorithm:   src.Algorithm,
	}, nil
}

// Get returns a source by id for authenticated admin reads.
func (s *Service) Get(ctx context.Context, sourceID id.SourceID) (*models.Source, error) {
	return s.getSource(ctx, sourceID)
}

// List returns all sources in creation order for authenticated admin reads.
func (s *Service) List(ctx context.Context) ([]*models.Source, error) {
	sources, err := s.sources.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sources")
	}
	return sources, nil
}

func (s *Service) getSource(ctx context.Context, sourceID id.SourceID) (*models.Source, error) {
	src, err := s.sources.Get(ctx, sourceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "source not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load source")
	}
	return src, nil
}

// sanitizeFilename reduces a source title to a safe download filename stem.
func sanitizeFilename(title string) string {
	var b strings.Builder
	dashed := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dashed = false
		default:
			if !dashed && b.Len() > 0 {
				b.WriteByte('-')
				dashed = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 100 {
		out = strings.Trim(out[:100], "-")
	}
	if out == "" {
		return "source"
	}
	return out
}
