package models

import (
	"net/url"
	"strings"
	"time"

	id "docket/pkg/domain"
	dErrors "docket/pkg/domain-errors"
)

// HashPrefix is the algorithm tag carried by every stored content hash.
const HashPrefix = "sha256:"

// FormatContentHash tags a raw hex digest with the hash algorithm.
func FormatContentHash(hexDigest string) string {
	return HashPrefix + hexDigest
}

// Source is the aggregate root for a referenced document backing a claim.
//
// Invariants:
//   - Title and Publisher are non-empty
//   - OriginURL is an absolute http or https URL
//   - Status transitions: PENDING → VERIFIED, PENDING → FAILED,
//     FAILED → VERIFIED, FAILED → FAILED. VERIFIED accepts no further writes.
//   - ContentHash, once set by a successful verification, is never mutated;
//     different bytes would produce a different hash and different keys, so
//     re-verifying new content means creating a new source.
//   - Derived storage keys never live on this type; the store mapping layer
//     computes them from ID, digest, and extension.
type Source struct {
	ID            id.SourceID  `json:"id"`
	Title         string       `json:"title"`
	Publisher     string       `json:"publisher"`
	OriginURL     string       `json:"origin_url"`
	Kind          SourceKind   `json:"kind"`
	Status        SourceStatus `json:"status"`
	ContentHash   string       `json:"content_hash,omitempty"`
	ByteSize      int64        `json:"byte_size,omitempty"`
	MimeType      string       `json:"mime_type,omitempty"`
	StorageKey    string       `json:"storage_key,omitempty"`
	ManifestKey   string       `json:"manifest_key,omitempty"`
	Signature     string       `json:"signature,omitempty"`
	KeyID         string       `json:"key_id,omitempty"`
	Algorithm     string       `json:"algorithm,omitempty"`
	RetrievedAt   *time.Time   `json:"retrieved_at,omitempty"`
	VerifiedAt    *time.Time   `json:"verified_at,omitempty"`
	FailureReason string       `json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	CreatedBy     id.ActorID   `json:"created_by"`
	UpdatedAt     time.Time    `json:"updated_at"`
	UpdatedBy     id.ActorID   `json:"updated_by"`
}

func NewSource(sourceID id.SourceID, title, publisher, originURL string, kind SourceKind, actor id.ActorID, now time.Time) (*Source, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "source title cannot be empty")
	}
	if len(title) > 500 {
		return nil, dErrors.New(dErrors.CodeValidation, "source title must be 500 characters or less")
	}
	publisher = strings.TrimSpace(publisher)
	if publisher == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "source publisher cannot be empty")
	}
	if err := ValidateHTTPURL(originURL); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid source kind")
	}
	return &Source{
		ID:        sourceID,
		Title:     title,
		Publisher: publisher,
		OriginURL: originURL,
		Kind:      kind,
		Status:    SourceStatusPending,
		CreatedAt: now,
		CreatedBy: actor,
		UpdatedAt: now,
		UpdatedBy: actor,
	}, nil
}

// ValidateHTTPURL accepts absolute http or https URLs. Used for origin URLs
// at creation and for snapshot fetch targets.
func ValidateHTTPURL(raw string) error {
	if raw == "" {
		return dErrors.New(dErrors.CodeValidation, "URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "URL is not valid")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "URL must be an absolute http or https URL")
	}
	return nil
}

// IsVerified reports whether the document bytes are bound by a signed
// manifest.
func (s *Source) IsVerified() bool {
	return s.Status == SourceStatusVerified
}

// CanAcceptUpload checks that the source still accepts document bytes.
// Returns an error once the source is VERIFIED.
// Use with ApplyVerification or ApplyFailure after the verification attempt.
func (s *Source) CanAcceptUpload() error {
	if !s.Status.Verifiable() {
		return dErrors.New(dErrors.CodeInvalidStateTransition, "source is already verified")
	}
	return nil
}

// CanVerify checks that a finalize or snapshot attempt is allowed. PENDING
// and FAILED sources may be (re-)verified; VERIFIED sources may not.
func (s *Source) CanVerify() error {
	if !s.Status.Verifiable() {
		return dErrors.New(dErrors.CodeInvalidStateTransition, "source is already verified")
	}
	return nil
}

// VerificationResult carries everything a successful verification binds to
// the source record. Digest is the raw hex SHA-256 of the stored bytes.
type VerificationResult struct {
	Digest      string
	ByteSize    int64
	MimeType    string
	StorageKey  string
	ManifestKey string
	Signature   string
	KeyID       string
	Algorithm   string
	RetrievedAt time.Time
	VerifiedAt  time.Time
}

// ApplyVerification transitions the source to VERIFIED and records the
// verification outcome. Call CanVerify first to validate the transition.
func (s *Source) ApplyVerification(res VerificationResult, actor id.ActorID, now time.Time) {
	s.Status = SourceStatusVerified
	s.ContentHash = FormatContentHash(res.Digest)
	s.ByteSize = res.ByteSize
	s.MimeType = res.MimeType
	s.StorageKey = res.StorageKey
	s.ManifestKey = res.ManifestKey
	s.Signature = res.Signature
	s.KeyID = res.KeyID
	s.Algorithm = res.Algorithm
	retrieved := res.RetrievedAt
	s.RetrievedAt = &retrieved
	verified := res.VerifiedAt
	s.VerifiedAt = &verified
	s.FailureReason = ""
	s.UpdatedAt = now
	s.UpdatedBy = actor
}

// ApplyFailure marks a verification attempt FAILED with the reason. The
// source stays retryable: a later Finalize or CaptureSnapshot may still
// verify it.
func (s *Source) ApplyFailure(reason string, actor id.ActorID, now time.Time) {
	s.Status = SourceStatusFailed
	s.FailureReason = reason
	s.UpdatedAt = now
	s.UpdatedBy = actor
}
