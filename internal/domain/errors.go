package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSlotConflict     = errors.New("slot no longer available")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTransientStorage = errors.New("storage temporarily unavailable")
	ErrNotFound         = errors.New("not found")
)

// Error codes returned to API callers.
const (
	CodeSlotConflict     = "SLOT_CONFLICT"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeTransientStorage = "TRANSIENT_STORAGE"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL"
)

// Invalid wraps ErrInvalidArgument with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrSlotConflict with a formatted reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSlotConflict, fmt.Sprintf(format, args...))
}

// Code classifies an error into its API code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSlotConflict):
		return CodeSlotConflict
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrTransientStorage):
		return CodeTransientStorage
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// Retryable reports whether the caller may retry the same request.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientStorage)
}
