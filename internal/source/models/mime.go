package models

// Upload limits. MaxUploadBytes bounds finalized uploads; snapshots default
// to DefaultSnapshotBytes and may be raised by the caller up to the upload
// cap.
const (
	MaxUploadBytes       int64 = 25 << 20
	DefaultSnapshotBytes int64 = 5 << 20
)

// mimeExtensions is the fixed allow-list of content types a source document
// may carry, mapped to the storage extension used in derived keys.
var mimeExtensions = map[string]string{
	"application/pdf": "pdf",
	"text/html":       "html",
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"image/webp":      "webp",
	"image/gif":       "gif",
}

// allowedExtensions lists every extension in the allow-list in a stable
// order, used when probing staging keys for an uploaded object.
var allowedExtensions = []string{"pdf", "html", "png", "jpg", "webp", "gif"}

// ExtensionForMime returns the storage extension for an allow-listed content
// type. ok is false for anything outside the list.
func ExtensionForMime(contentType string) (string, bool) {
	ext, ok := mimeExtensions[contentType]
	return ext, ok
}

// MimeForExtension is the reverse lookup; extensions in the allow-list map
// back to exactly one content type.
func MimeForExtension(ext string) (string, bool) {
	for contentType, e := range mimeExtensions {
		if e == ext {
			return contentType, true
		}
	}
	return "", false
}

// AllowedExtensions returns the probe order for staged uploads.
func AllowedExtensions() []string {
	return append([]string(nil), allowedExtensions...)
}
