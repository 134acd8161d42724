package models

import (
	"fmt"
	"strings"
	"time"

	dErrors "docket/pkg/domain-errors"
)

// MaxCounterpointNote caps a single dispute, correction, or retraction note.
const MaxCounterpointNote = 2000

// CounterpointKind labels a counterpoint annotation with the lifecycle
// operation that produced it.
type CounterpointKind string

const (
	CounterpointDispute    CounterpointKind = "Dispute"
	CounterpointCorrection CounterpointKind = "Correction"
	CounterpointRetraction CounterpointKind = "Retraction"
)

// ValidateCounterpointNote checks a note supplied with a dispute,
// correction, or retraction.
//
// Errors: returns CodeValidation when the note is blank or too long.
func ValidateCounterpointNote(note string) error {
	if strings.TrimSpace(note) == "" {
		return dErrors.New(dErrors.CodeValidation, "note cannot be empty")
	}
	if len(note) > MaxCounterpointNote {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("note cannot exceed %d characters", MaxCounterpointNote))
	}
	return nil
}

// formatCounterpoint renders one annotation line. The timestamp is always
// UTC so the rendered history reads in one timeline regardless of where the
// operation ran.
func formatCounterpoint(kind CounterpointKind, note string, at time.Time) string {
	return fmt.Sprintf("[%s %s]: %s", kind, at.UTC().Format(time.RFC3339), note)
}
