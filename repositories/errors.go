package repositories

import "errors"

var (
	// ErrNotFound is returned when no item exists under the requested key.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by conditional writes whose expected version is stale.
	ErrVersionConflict = errors.New("record version conflict")
	// ErrKindMismatch is returned when a stored item decodes to an unexpected record kind.
	ErrKindMismatch = errors.New("record kind mismatch")
)
