package thought

import "errors"

// Condition kinds surfaced to callers. Every error returned from the core
// wraps exactly one of these so handlers can distinguish "fix your input"
// (validation), "back off" (security), and "wrong call sequence" (tree)
// with errors.Is.
var (
	// ErrValidation marks malformed input shape: missing or mistyped
	// fields, out-of-range values. Rejected before any mutation.
	ErrValidation = errors.New("validation error")

	// ErrSecurity marks rate-limit exhaustion, blocked content, or a
	// malformed session id. Rejected before any mutation.
	ErrSecurity = errors.New("security error")

	// ErrTree marks a caller sequencing error: an operation addressed a
	// session with no tree, or an absent node id.
	ErrTree = errors.New("tree error")
)
