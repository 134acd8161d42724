package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// VerificationManifest is the exact payload bound by the manifest signature.
// The persisted manifest object holds the same bytes that were signed, so a
// third party can fetch the object, fetch the public key, and verify without
// re-serializing anything.
type VerificationManifest struct {
	SourceID    string    `json:"source_id"`
	StorageKey  string    `json:"storage_key"`
	ContentHash string    `json:"content_hash"`
	ByteSize    int64     `json:"byte_size"`
	MimeType    string    `json:"mime_type"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Publisher   string    `json:"publisher"`
	OriginURL   string    `json:"origin_url"`
	VerifiedAt  time.Time `json:"verified_at"`
	Algorithm   string    `json:"algorithm"`
	KeyID       string    `json:"key_id"`
}

// CanonicalBytes serializes the manifest with RFC 8785 canonical JSON.
// Canonicalization makes the byte sequence reproducible: any JSON document
// with the same fields canonicalizes to the same bytes, so the signature
// stays verifiable no matter which library re-encoded the manifest.
func (m VerificationManifest) CanonicalBytes() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize manifest: %w", err)
	}
	return canonical, nil
}
