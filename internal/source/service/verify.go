package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docket/internal/events"
	"docket/internal/signing"
	"docket/internal/source/models"
	"docket/internal/source/store"
	id "docket/pkg/domain"
	dErrors "docket/pkg/domain-errors"
	"docket/pkg/platform/sentinel"
	"docket/pkg/requestcontext"
)

var tracer = otel.Tracer("docket/internal/source/service")

// The verification saga (locate/fetch → hash → move → sign → persist) has no
// compensating rollback. Every step is idempotent instead: the final key is
// content-addressed, re-signing identical manifest bytes yields an equally
// valid signature, and the record update is conditional. Finalize and
// CaptureSnapshot may be re-invoked from PENDING or FAILED after any partial
// failure.
//
// Failure classification: caller-input problems (nothing staged, oversize,
// disallowed type) leave the record in its prior status so the caller can
// correct and retry. Failures after the bytes were located and hashed (move,
// sign, persist) mark the source FAILED with the reason.

// Finalize promotes a staged upload to VERIFIED.
func (s *Service) Finalize(ctx context.Context, sourceID id.SourceID, actor id.ActorID) (*models.Source, error) {
	ctx, span := tracer.Start(ctx, "source.finalize",
		trace.WithAttributes(attribute.String("source.id", sourceID.String())))
	defer span.End()

	src, err := s.finalize(ctx, sourceID, actor)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("source.content_hash", src.ContentHash),
		attribute.Int64("source.byte_size", src.ByteSize))
	return src, nil
}

func (s *Service) finalize(ctx context.Context, sourceID id.SourceID, actor id.ActorID) (*models.Source, error) {
	start := time.Now()
	src, err := s.getSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := src.CanVerify(); err != nil {
		return nil, err
	}

	stagingKey, ext, declaredSize, err := s.locateStagedObject(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	if declaredSize > models.MaxUploadBytes {
		return nil, dErrors.New(dErrors.CodeFileTooLarge, fmt.Sprintf("uploaded object is %d bytes, limit is %d", declaredSize, models.MaxUploadBytes))
	}

	digest, byteSize, err := s.hashObject(ctx, stagingKey)
	if err != nil {
		return nil, err
	}
	if byteSize > models.MaxUploadBytes {
		return nil, dErrors.New(dErrors.CodeFileTooLarge, fmt.Sprintf("uploaded object is %d bytes, limit is %d", byteSize, models.MaxUploadBytes))
	}
	mimeType, _ := models.MimeForExtension(ext)

	finalKey := store.FinalKey(src.ID, digest, ext)
	if err := s.objects.Copy(ctx, stagingKey, finalKey); err != nil {
		return nil, s.failVerification(ctx, src, actor, "copy to content-addressed key failed", err)
	}
	if err := s.objects.Delete(ctx, stagingKey); err != nil {
		// The final key already holds the bytes; a leftover staging object
		// is re-deleted by the next finalize attempt.
		s.logger.WarnContext(ctx, "failed to delete staging object", "key", stagingKey, "error", err)
	}

	verified, err := s.completeVerification(ctx, src, actor, verificationSpec{
		digest:      digest,
		byteSize:    byteSize,
		mimeType:    mimeType,
		storageKey:  finalKey,
		manifestKey: store.ManifestKey(src.ID, digest),
		retrievedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveFinalize(start)
	}
	return verified, nil
}

// CaptureSnapshot verifies a source by fetching its document directly,
// bypassing staging. Used when promoting an externally discovered document.
// maxBytes defaults to models.DefaultSnapshotBytes and is capped at the
// upload limit.
func (s *Service) CaptureSnapshot(ctx context.Context, sourceID id.SourceID, rawURL string, actor id.ActorID, maxBytes int64) (*models.Source, error) {
	ctx, span := tracer.Start(ctx, "source.capture_snapshot",
		trace.WithAttributes(attribute.String("source.id", sourceID.String())))
	defer span.End()

	src, err := s.captureSnapshot(ctx, sourceID, rawURL, actor, maxBytes)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("source.content_hash", src.ContentHash),
		attribute.Int64("source.byte_size", src.ByteSize))
	return src, nil
}

func (s *Service) captureSnapshot(ctx context.Context, sourceID id.SourceID, rawURL string, actor id.ActorID, maxBytes int64) (*models.Source, error) {
	start := time.Now()
	if maxBytes <= 0 {
		maxBytes = models.DefaultSnapshotBytes
	}
	if maxBytes > models.MaxUploadBytes {
		maxBytes = models.MaxUploadBytes
	}
	if err := models.ValidateHTTPURL(rawURL); err != nil {
		return nil, err
	}

	src, err := s.getSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := src.CanVerify(); err != nil {
		return nil, err
	}

	doc, err := s.fetcher.Fetch(ctx, rawURL, maxBytes)
	if err != nil {
		return nil, err
	}
	mediaType, _, err := mime.ParseMediaType(doc.ContentType)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidMimeType, fmt.Sprintf("unparseable content type %q", doc.ContentType))
	}
	ext, ok := models.ExtensionForMime(mediaType)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidMimeType, fmt.Sprintf("content type %q is not allowed", mediaType))
	}

	sum := sha256.Sum256(doc.Body)
	digest := hex.EncodeToString(sum[:])
	finalKey := store.FinalKey(src.ID, digest, ext)
	if err := s.objects.Put(ctx, finalKey, bytes.NewReader(doc.Body), int64(len(doc.Body)), mediaType); err != nil {
		return nil, s.failVerification(ctx, src, actor, "snapshot persistence failed", err)
	}

	verified, err := s.completeVerification(ctx, src, actor, verificationSpec{
		digest:      digest,
		byteSize:    int64(len(doc.Body)),
		mimeType:    mediaType,
		storageKey:  finalKey,
		manifestKey: store.ManifestKey(src.ID, digest),
		retrievedAt: doc.RetrievedAt,
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveSnapshot(start)
	}
	return verified, nil
}

// locateStagedObject probes the staging key across every allowed extension.
func (s *Service) locateStagedObject(ctx context.Context, sourceID id.SourceID) (key, ext string, size int64, err error) {
	for _, candidate := range models.AllowedExtensions() {
		probe := store.StagingKey(sourceID, candidate)
		info, headErr := s.objects.Head(ctx, probe)
		if headErr != nil {
			if errors.Is(headErr, sentinel.ErrNotFound) {
				continue
			}
			return "", "", 0, dErrors.Wrap(headErr, dErrors.CodeInternal, "failed to probe staging object")
		}
		return probe, candidate, info.Size, nil
	}
	return "", "", 0, dErrors.New(dErrors.CodeNotFound, "no staged upload found for source")
}

// hashObject streams the object through SHA-256 without buffering it.
func (s *Service) hashObject(ctx context.Context, key string) (digest string, byteSize int64, err error) {
	body, _, err := s.objects.Get(ctx, key)
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read staged object")
	}
	defer body.Close()

	hasher := sha256.New()
	n, err := io.Copy(hasher, body)
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash staged object")
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

type verificationSpec struct {
	digest      string
	byteSize    int64
	mimeType    string
	storageKey  string
	manifestKey string
	retrievedAt time.Time
}

// sourceVerifiedPayload is the outbox payload for source.verified.
type sourceVerifiedPayload struct {
	SourceID    string `json:"source_id"`
	ContentHash string `json:"content_hash"`
	ByteSize    int64  `json:"byte_size"`
	MimeType    string `json:"mime_type"`
	StorageKey  string `json:"storage_key"`
}

// completeVerification builds, signs, and persists the manifest, then
// settles the source record and its outbox envelope in one store write.
func (s *Service) completeVerification(ctx context.Context, src *models.Source, actor id.ActorID, spec verificationSpec) (*models.Source, error) {
	now := requestcontext.Now(ctx)
	manifest := models.VerificationManifest{
		SourceID:    src.ID.String(),
		StorageKey:  spec.storageKey,
		ContentHash: models.FormatContentHash(spec.digest),
		ByteSize:    spec.byteSize,
		MimeType:    spec.mimeType,
		RetrievedAt: spec.retrievedAt.UTC(),
		Publisher:   src.Publisher,
		OriginURL:   src.OriginURL,
		VerifiedAt:  now.UTC(),
		Algorithm:   signing.AlgorithmEd25519,
		KeyID:       s.signer.KeyID(),
	}
	payload, err := manifest.CanonicalBytes()
	if err != nil {
		return nil, s.failVerification(ctx, src, actor, "manifest serialization failed", err)
	}

	sig, err := s.signer.Sign(ctx, payload)
	if err != nil {
		return nil, s.failVerification(ctx, src, actor, "manifest signing failed", err)
	}
	if sig.KeyID != manifest.KeyID || sig.Algorithm != manifest.Algorithm {
		return nil, s.failVerification(ctx, src, actor, "signer key confirmation failed",
			fmt.Errorf("signed with key %q algorithm %q, manifest names key %q algorithm %q", sig.KeyID, sig.Algorithm, manifest.KeyID, manifest.Algorithm))
	}

	if err := s.objects.Put(ctx, spec.manifestKey, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return nil, s.failVerification(ctx, src, actor, "manifest persistence failed", err)
	}

	src.ApplyVerification(models.VerificationResult{
		Digest:      spec.digest,
		ByteSize:    spec.byteSize,
		MimeType:    spec.mimeType,
		StorageKey:  spec.storageKey,
		ManifestKey: spec.manifestKey,
		Signature:   sig.Value,
		KeyID:       sig.KeyID,
		Algorithm:   sig.Algorithm,
		RetrievedAt: spec.retrievedAt,
		VerifiedAt:  now,
	}, actor, now)

	env, err := events.NewEnvelope(events.KindSourceVerified, src.ID.String(), actor, now, sourceVerifiedPayload{
		SourceID:    src.ID.String(),
		ContentHash: src.ContentHash,
		ByteSize:    src.ByteSize,
		MimeType:    src.MimeType,
		StorageKey:  src.StorageKey,
	})
	if err != nil {
		return nil, s.failVerification(ctx, src, actor, "verification envelope failed", err)
	}

	if err := s.sources.SaveVerification(ctx, src, env); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "source not found")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "source was verified concurrently")
		default:
			return nil, s.failVerification(ctx, src, actor, "verification persistence failed", err)
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementSourceVerified()
	}
	s.logger.InfoContext(ctx, "source verified",
		"source_id", src.ID,
		"content_hash", src.ContentHash,
		"byte_size", src.ByteSize,
		"actor", actor)
	return src, nil
}

// failVerification marks the source FAILED with the reason and returns the
// caller-facing error. The FAILED record is a retry point, not a terminal
// state.
func (s *Service) failVerification(ctx context.Context, src *models.Source, actor id.ActorID, reason string, cause error) error {
	now := requestcontext.Now(ctx)
	src.ApplyFailure(reason, actor, now)
	if err := s.sources.MarkFailed(ctx, src); err != nil {
		s.logger.ErrorContext(ctx, "failed to record verification failure",
			"source_id", src.ID, "reason", reason, "error", err)
	}
	if s.metrics != nil {
		s.metrics.IncrementVerificationFailure()
	}
	s.logger.WarnContext(ctx, "source verification failed",
		"source_id", src.ID, "reason", reason, "error", cause)
	return dErrors.Wrap(cause, dErrors.CodeInternal, reason)
}
