package models

import dErrors "docket/pkg/domain-errors"

// SourceKind is the declared document type of a source. It describes what
// the submitter claims the document is; verification never checks it against
// the bytes.
type SourceKind string

const (
	SourceKindFiling      SourceKind = "FILING"
	SourceKindReport      SourceKind = "REPORT"
	SourceKindNewsArticle SourceKind = "NEWS_ARTICLE"
	SourceKindWebPage     SourceKind = "WEB_PAGE"
	SourceKindDataset     SourceKind = "DATASET"
	SourceKindImage       SourceKind = "IMAGE"
)

// validSourceKinds is the single source of truth for valid kinds.
var validSourceKinds = map[SourceKind]bool{
	SourceKindFiling:      true,
	SourceKindReport:      true,
	SourceKindNewsArticle: true,
	SourceKindWebPage:     true,
	SourceKindDataset:     true,
	SourceKindImage:       true,
}

// ParseSourceKind constructs a SourceKind from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseSourceKind(s string) (SourceKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "kind cannot be empty")
	}
	k := SourceKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid source kind")
	}
	return k, nil
}

// IsValid checks if the kind is one of the supported enum values.
func (k SourceKind) IsValid() bool {
	return validSourceKinds[k]
}

// String returns the string representation of the kind.
func (k SourceKind) String() string {
	return string(k)
}
