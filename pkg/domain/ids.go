// Package domain defines typed identifiers shared across bounded contexts.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects
// cross-type assignment (a SourceID can never be passed where a CardID is
// expected). Construct via the ParseXxxID functions at trust boundaries;
// direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "docket/pkg/domain-errors"
)

// SourceID identifies a source document record.
type SourceID uuid.UUID

// CardID identifies an evidence card across all of its versions.
type CardID uuid.UUID

// EntityID identifies an organization an evidence card is about.
type EntityID uuid.UUID

// ParseSourceID constructs a SourceID from external input.
//
// Errors: CodeInvalidInput when the value is empty, not a UUID, or the nil
// UUID; no other errors are expected.
func ParseSourceID(s string) (SourceID, error) {
	u, err := parseUUID(s, "source id")
	if err != nil {
		return SourceID{}, err
	}
	return SourceID(u), nil
}

// ParseCardID constructs a CardID from external input.
func ParseCardID(s string) (CardID, error) {
	u, err := parseUUID(s, "card id")
	if err != nil {
		return CardID{}, err
	}
	return CardID(u), nil
}

// ParseEntityID constructs an EntityID from external input.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID(s, "entity id")
	if err != nil {
		return EntityID{}, err
	}
	return EntityID(u), nil
}

// parseUUID enforces the shared ID invariant: valid, non-empty, non-nil.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func (id SourceID) String() string { return uuid.UUID(id).String() }
func (id CardID) String() string   { return uuid.UUID(id).String() }
func (id EntityID) String() string { return uuid.UUID(id).String() }

func (id SourceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CardID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EntityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// The text marshalling below keeps IDs as canonical UUID strings in JSON
// and log output. Unmarshalling parses strictly but accepts the nil UUID:
// stored payloads are trusted data, not boundary input.

func (id SourceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id CardID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id EntityID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SourceID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = SourceID(u)
	return nil
}

func (id *CardID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = CardID(u)
	return nil
}

func (id *EntityID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = EntityID(u)
	return nil
}
