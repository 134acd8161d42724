package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "docket/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSourceID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSourceID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSourceID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseSourceID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, SourceID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	sourceID := SourceID(uuid.New())
	cardID := CardID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ SourceID = cardID   // compile error
	// var _ CardID = sourceID   // compile error

	// Verify they're distinct at runtime too
	assert.NotEqual(t, uuid.UUID(sourceID), uuid.UUID(cardID))
}

// TestParseID_SecurityInvariants validates security-critical parsing rules.
//
// Parsing must reject attack vectors at API entry points; these IDs end up
// in storage keys and presigned URLs.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		// Attack vectors
		{"SQL injection attempt", "'; DROP TABLE cards;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400​-e29b-41d4-a716-446655440000", true},

		// Edge cases
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},

		// Valid
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSourceID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types have identical parsing behavior.
//
// Inconsistent validation across ID types could create holes at trust boundaries.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errSource := ParseSourceID(validUUID)
		_, errCard := ParseCardID(validUUID)
		_, errEntity := ParseEntityID(validUUID)

		require.NoError(t, errSource)
		require.NoError(t, errCard)
		require.NoError(t, errEntity)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errSource := ParseSourceID(input)
			_, errCard := ParseCardID(input)
			_, errEntity := ParseEntityID(input)

			require.Error(t, errSource)
			require.Error(t, errCard)
			require.Error(t, errEntity)
		})
	}
}

// TestParseActorID_Invariants validates actor parsing at trust boundaries.
func TestParseActorID_Invariants(t *testing.T) {
	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseActorID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects oversized", func(t *testing.T) {
		_, err := ParseActorID(strings.Repeat("a", 129))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts service principal", func(t *testing.T) {
		actor, err := ParseActorID("ingest-pipeline")
		require.NoError(t, err)
		assert.Equal(t, ActorID("ingest-pipeline"), actor)
		assert.False(t, actor.IsZero())
	})
}
