package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeOutOfOrder, "step 2 is not the current step")
		assert.True(t, HasCode(err, CodeOutOfOrder))
		assert.False(t, HasCode(err, CodeInvalidTransition))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		inner := New(CodeConcurrentModification, "stale read")
		outer := fmt.Errorf("advance step: %w", inner)
		assert.True(t, HasCode(outer, CodeConcurrentModification))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrapPreservesInnerCode(t *testing.T) {
	inner := New(CodeAlreadyFinalized, "audit already recorded")
	wrapped := Wrap(inner, CodeInternal, "finalize audit")

	require.Error(t, wrapped)
	assert.True(t, HasCode(wrapped, CodeAlreadyFinalized), "wrapping must not clobber the specific code")
	assert.True(t, errors.Is(wrapped, inner))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "noop"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "empty rejection reason")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("unclassified")))
}
