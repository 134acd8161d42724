package models

import dErrors "docket/pkg/domain-errors"

// CardStatus is the lifecycle state of an evidence card.
// Invariant: the value must be one of the supported statuses, and changes
// must follow the transition graph owned by CanTransitionTo.
type CardStatus string

const (
	CardStatusDraft     CardStatus = "DRAFT"
	CardStatusReview    CardStatus = "REVIEW"
	CardStatusPublished CardStatus = "PUBLISHED"
	CardStatusDisputed  CardStatus = "DISPUTED"
	CardStatusCorrected CardStatus = "CORRECTED"
	CardStatusRetracted CardStatus = "RETRACTED"
	CardStatusArchived  CardStatus = "ARCHIVED"
)

// validCardStatuses is the single source of truth for valid statuses.
var validCardStatuses = map[CardStatus]bool{
	CardStatusDraft:     true,
	CardStatusReview:    true,
	CardStatusPublished: true,
	CardStatusDisputed:  true,
	CardStatusCorrected: true,
	CardStatusRetracted: true,
	CardStatusArchived:  true,
}

// cardTransitions is the exhaustive directed transition graph. No pair
// outside this table is representable; ARCHIVED resurrects to DRAFT, so the
// machine has no true terminal state.
var cardTransitions = map[CardStatus][]CardStatus{
	CardStatusDraft:     {CardStatusReview, CardStatusArchived},
	CardStatusReview:    {CardStatusDraft, CardStatusPublished, CardStatusArchived},
	CardStatusPublished: {CardStatusDisputed, CardStatusCorrected, CardStatusRetracted, CardStatusArchived},
	CardStatusDisputed:  {CardStatusPublished, CardStatusCorrected, CardStatusRetracted, CardStatusArchived},
	CardStatusCorrected: {CardStatusDisputed, CardStatusRetracted, CardStatusArchived},
	CardStatusRetracted: {CardStatusArchived},
	CardStatusArchived:  {CardStatusDraft},
}

// ParseCardStatus constructs a CardStatus from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseCardStatus(s string) (CardStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := CardStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid card status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s CardStatus) IsValid() bool {
	return validCardStatuses[s]
}

// String returns the string representation of the status.
func (s CardStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the transition graph permits moving to
// next from this status.
func (s CardStatus) CanTransitionTo(next CardStatus) bool {
	for _, allowed := range cardTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Editable reports whether card content may change in this status.
func (s CardStatus) Editable() bool {
	return s == CardStatusDraft || s == CardStatusReview
}
