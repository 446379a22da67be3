package domain

import "errors"

// Error taxonomy shared by all layers. Callers classify failures with
// errors.Is and wrap with context via fmt.Errorf("...: %w", err).
var (
	// ErrValidation indicates bad or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a missing book, cover, or review.
	ErrNotFound = errors.New("not found")
	// ErrAuthRequired indicates an unauthenticated caller hit a gated action.
	ErrAuthRequired = errors.New("authentication required")
	// ErrForbidden indicates an authenticated caller with insufficient role.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness violation, e.g. a duplicate review
	// or two requests racing to create the same cover.
	ErrConflict = errors.New("conflict")
	// ErrStorage indicates a database or filesystem failure.
	ErrStorage = errors.New("storage failure")
)
