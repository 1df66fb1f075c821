package models

import "errors"

// Sentinel errors shared by every capsule component.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation indicates empty or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates there is no data for the user or entry.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch indicates an embedding whose length differs from
	// the dimension established by the user's index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConflict indicates a write lost a race: the entry id or index
	// position it targeted is already taken. Callers retry with fresh state.
	ErrConflict = errors.New("already exists")

	// ErrUpstreamUnavailable indicates the embedding or generation service
	// failed or timed out.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// errorCodes names each sentinel on the wire, in match order.
var errorCodes = []struct {
	code string
	err  error
}{
	{"validation", ErrValidation},
	{"not_found", ErrNotFound},
	{"dimension_mismatch", ErrDimensionMismatch},
	{"conflict", ErrConflict},
	{"upstream_unavailable", ErrUpstreamUnavailable},
}

// ErrorCode returns the wire code of the first sentinel err wraps, or
// "internal" when it wraps none.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// ErrorForCode is the inverse of ErrorCode. It returns nil for "internal"
// and unknown codes.
func ErrorForCode(code string) error {
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
