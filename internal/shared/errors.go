package shared

import "errors"

// Error taxonomy shared by every core module. Packages declare their own
// sentinels wrapping exactly one of these four, so callers branch on the
// class with errors.Is without importing every module.
var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a state violation (closed period, duplicate folio, cyclic move).
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates a referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrConcurrency indicates a lost lock or consecutive race; the whole operation is safe to retry.
	ErrConcurrency = errors.New("concurrency conflict")
)
