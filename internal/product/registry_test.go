package product

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossierflow/internal/dossier/models"
	dErrors "dossierflow/pkg/domain-errors"
)

func TestStepsFor(t *testing.T) {
	registry := NewStaticRegistry()
	ctx := context.Background()

	t.Run("known category returns its template", func(t *testing.T) {
		steps, err := registry.StepsFor(ctx, "ticpe")
		require.NoError(t, err)
		require.Len(t, steps, 5)
		assert.Equal(t, models.StepValidation, steps[0].Type)
		assert.Equal(t, models.StepPayment, steps[len(steps)-1].Type)
	})

	t.Run("unknown category falls back to generic", func(t *testing.T) {
		steps, err := registry.StepsFor(ctx, "cee")
		require.NoError(t, err)
		require.NotEmpty(t, steps)
		assert.Equal(t, "Eligibility validation", steps[0].Name)
	})

	t.Run("empty category is rejected", func(t *testing.T) {
		_, err := registry.StepsFor(ctx, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestMaterialize(t *testing.T) {
	registry := NewStaticRegistry()
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	templates, err := registry.StepsFor(context.Background(), "urssaf")
	require.NoError(t, err)

	steps := Materialize(templates, now)
	require.Len(t, steps, len(templates))

	seen := map[string]bool{}
	for i, s := range steps {
		assert.Equal(t, models.StepPending, s.Status)
		assert.False(t, s.ID.IsZero())
		assert.False(t, seen[s.ID.String()], "step ids must be unique")
		seen[s.ID.String()] = true
		require.NotNil(t, s.DueDate)
		assert.Equal(t, now.Add(templates[i].EstimatedDuration), *s.DueDate)
	}
}
