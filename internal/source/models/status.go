package models

import dErrors "docket/pkg/domain-errors"

// SourceStatus tracks a source document through verification.
// Invariant: the value must be one of the supported statuses.
//
// Usage: construct via ParseSourceStatus at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type SourceStatus string

const (
	SourceStatusPending  SourceStatus = "PENDING"
	SourceStatusVerified SourceStatus = "VERIFIED"
	SourceStatusFailed   SourceStatus = "FAILED"
)

// validSourceStatuses is the single source of truth for valid statuses.
var validSourceStatuses = map[SourceStatus]bool{
	SourceStatusPending:  true,
	SourceStatusVerified: true,
	SourceStatusFailed:   true,
}

// ParseSourceStatus constructs a SourceStatus from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseSourceStatus(s string) (SourceStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := SourceStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid source status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s SourceStatus) IsValid() bool {
	return validSourceStatuses[s]
}

// String returns the string representation of the status.
func (s SourceStatus) String() string {
	return string(s)
}

// Verifiable reports whether a source in this status may still accept
// uploads and verification attempts. VERIFIED is terminal for the document
// bytes: re-verification of different content requires a new source.
func (s SourceStatus) Verifiable() bool {
	return s == SourceStatusPending || s == SourceStatusFailed
}
