package domain

import dErrors "docket/pkg/domain-errors"

// ActorID names the authenticated principal performing an operation. Actors
// include human editors and service principals (for example the ingestion
// pipeline), so the type is a validated string rather than a UUID.
//
// Usage: construct via ParseActorID at trust boundaries; services receive it
// already validated and record it on audit fields and event envelopes.
type ActorID string

// ParseActorID constructs an ActorID from external input.
//
// Errors: CodeInvalidInput when the value is empty or longer than 128
// characters; no other errors are expected.
func ParseActorID(s string) (ActorID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "actor id cannot be empty")
	}
	if len(s) > 128 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "actor id must be 128 characters or less")
	}
	return ActorID(s), nil
}

// String returns the string representation of the actor.
func (a ActorID) String() string {
	return string(a)
}

// IsZero reports whether the actor is unset.
func (a ActorID) IsZero() bool {
	return a == ""
}
