package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dossierflow/pkg/domain-errors"
)

// TestParseID_Invariants validates the parsing invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseDossierID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseDossierID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseDossierID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseDossierID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, DossierID(validUUID), id)
	})

	t.Run("error names the field", func(t *testing.T) {
		_, err := ParseClientID("nope")
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "client id"))

		_, err = ParseExpertID("")
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "expert id"))
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
func TestTypeDistinction(t *testing.T) {
	dossierID := DossierID(uuid.New())
	stepID := StepID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ DossierID = stepID   // compile error
	// var _ StepID = dossierID   // compile error

	// Verify they're distinct at runtime too
	assert.NotEqual(t, uuid.UUID(dossierID), uuid.UUID(stepID))
}

// TestID_JSONRoundTrip verifies IDs serialize as canonical UUID strings,
// which the JSON document store depends on.
func TestID_JSONRoundTrip(t *testing.T) {
	original := NewDossierID()

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"`+original.String()+`"`, string(raw))

	var decoded DossierID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}

func TestID_IsZero(t *testing.T) {
	assert.True(t, DossierID{}.IsZero())
	assert.True(t, ClientID(uuid.Nil).IsZero())
	assert.False(t, NewDossierID().IsZero())
	assert.False(t, NewProductID().IsZero())
}
