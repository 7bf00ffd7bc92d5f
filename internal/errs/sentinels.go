// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrProviderNotFound indicates a provider name absent from a registry.
	ErrProviderNotFound = fmt.Errorf("provider %w", ErrNotFound)

	// ErrConfiguration indicates missing or invalid configuration detected at use time.
	ErrConfiguration = errors.New("configuration error")

	// ErrNoCompatibleProvider indicates no registered extension accepts the request.
	ErrNoCompatibleProvider = errors.New("no compatible provider")

	// ErrValidation indicates a malformed request rejected before any lookup or write.
	ErrValidation = errors.New("validation")

	// ErrVersionConflict indicates optimistic concurrency failure (stored version mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., reference code taken).
	ErrAlreadyExists = errors.New("already exists")
)

// Validation wraps ErrValidation with a formatted reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
