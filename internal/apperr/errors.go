// Package apperr holds the error categories services return to callers.
// Wrap with fmt.Errorf("...: %w", ErrX) and test with errors.Is.
package apperr

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrProviderUnavailable = errors.New("metadata provider unavailable")
	ErrCritical            = errors.New("critical: disk and database state diverged")
)
