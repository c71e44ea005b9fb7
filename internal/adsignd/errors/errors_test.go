package errors

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError("NOT_FOUND", "display not found", "Registry.Get", ErrNotFound)
	assert.Equal(t, "Registry.Get: display not found", err.Error())

	noOp := NewError("NOT_FOUND", "display not found", "", ErrNotFound)
	assert.Equal(t, "display not found", noOp.Error())
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		code  string
	}{
		{"validation", Validation("op", "bad name"), IsInvalidInput, "INVALID_INPUT"},
		{"not found", NotFound("op", "missing"), IsNotFound, "NOT_FOUND"},
		{"conflict", Conflict("op", "taken"), IsConflict, "CONFLICT"},
		{"invalid state", InvalidState("op", "not pending"), IsInvalidState, "INVALID_STATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.Equal(t, tt.code, Code(wrapped))
		})
	}
}

func TestCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, "INTERNAL", Code(sql.ErrConnDone))
	assert.False(t, IsNotFound(sql.ErrConnDone))
}
