package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"validation", NewValidationError("bad payload", nil), Validation},
		{"not found", NewNotFoundError("application not found", nil), NotFound},
		{"invalid state", NewInvalidStateError("voting closed", nil), InvalidState},
		{"conflict", NewConflictError("retry exhausted", ErrSerialization), Conflict},
		{"internal", NewInternalError("boom", nil), Internal},
		{"wrapped fault", fmt.Errorf("saving: %w", NewNotFoundError("question", nil)), NotFound},
		{"store sentinel", fmt.Errorf("get: %w", ErrNotFound), NotFound},
		{"plain error", errors.New("plain"), Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestFaultUnwrap(t *testing.T) {
	err := NewConflictError("transaction retries exhausted", ErrSerialization)

	assert.True(t, errors.Is(err, ErrSerialization))
	assert.True(t, IsConflict(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, "[Conflict] transaction retries exhausted: concurrent update detected", err.Error())
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "voting is closed", MessageOf(NewInvalidStateError("voting is closed", nil), "x"))
	assert.Equal(t, "fallback", MessageOf(errors.New("raw"), "fallback"))
	assert.False(t, IsNotFound(nil))
}
