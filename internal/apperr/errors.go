// Package apperr defines the error kinds returned to the UI layer.
package apperr

import "errors"

var (
	// ErrValidation marks input rejected before any filesystem call
	// (bad asset id, disallowed extension, not a directory).
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	// ErrCancelled is returned when the user dismisses a dialog.
	ErrCancelled = errors.New("cancelled by user")
)

// Kind returns a short machine-readable name for err's category.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "io"
	}
}
