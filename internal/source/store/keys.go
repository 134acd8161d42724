package store

import (
	"fmt"

	id "docket/pkg/domain"
)

// Object keys are derived here, never carried on the domain record. The
// final key is content-addressed: identical bytes for the same source always
// resolve to the same location, which is what makes the finalize saga safe
// to re-run from any step.

// StagingKey is where an upload lands before verification.
func StagingKey(sourceID id.SourceID, ext string) string {
	return fmt.Sprintf("staging/%s.%s", sourceID, ext)
}

// FinalKey is the content-addressed home of verified bytes.
func FinalKey(sourceID id.SourceID, digest, ext string) string {
	return fmt.Sprintf("sources/%s/%s.%s", sourceID, digest, ext)
}

// ManifestKey addresses the signed manifest next to the bytes it describes.
func ManifestKey(sourceID id.SourceID, digest string) string {
	return fmt.Sprintf("sources/%s/%s.manifest.json", sourceID, digest)
}
