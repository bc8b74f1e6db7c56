package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"conflict", Conflict("overlaps %s", "a1"), CodeSlotConflict},
		{"invalid", Invalid("duration must be positive"), CodeInvalidArgument},
		{"wrapped permission", fmt.Errorf("cleanup: %w", ErrPermissionDenied), CodePermissionDenied},
		{"transient", fmt.Errorf("insert hold: %w: %w", ErrTransientStorage, errors.New("database is locked")), CodeTransientStorage},
		{"not found", fmt.Errorf("get hold: %w", ErrNotFound), CodeNotFound},
		{"other", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("x: %w", ErrTransientStorage)))
	assert.False(t, Retryable(ErrSlotConflict))
	assert.Contains(t, Invalid("bad %d", 1).Error(), "bad 1")
}
