package models

import dErrors "docket/pkg/domain-errors"

// EvidenceStrength is the editorial grading of how strongly the cited
// sources support the claim.
type EvidenceStrength string

const (
	StrengthWeak       EvidenceStrength = "WEAK"
	StrengthModerate   EvidenceStrength = "MODERATE"
	StrengthStrong     EvidenceStrength = "STRONG"
	StrengthConclusive EvidenceStrength = "CONCLUSIVE"
)

// validStrengths is the single source of truth for valid strengths.
var validStrengths = map[EvidenceStrength]bool{
	StrengthWeak:       true,
	StrengthModerate:   true,
	StrengthStrong:     true,
	StrengthConclusive: true,
}

// ParseEvidenceStrength constructs an EvidenceStrength from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseEvidenceStrength(s string) (EvidenceStrength, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "strength cannot be empty")
	}
	es := EvidenceStrength(s)
	if !es.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid evidence strength")
	}
	return es, nil
}

// IsValid checks if the strength is one of the supported enum values.
func (s EvidenceStrength) IsValid() bool {
	return validStrengths[s]
}

// String returns the string representation of the strength.
func (s EvidenceStrength) String() string {
	return string(s)
}
