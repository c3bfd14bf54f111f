package cache

import "errors"

// Error taxonomy for the eviction core.
//
// ErrBusy is non-fatal contention: another session holds a hazard reference,
// or a child Ref is LOCKED/READING. The caller should pick a different
// candidate.
var (
	// ErrBusy is returned when the subtree could not be locked because a
	// reader holds a hazard reference, or because a child is already
	// LOCKED or READING.
	ErrBusy = errors.New("cache: page busy, could not acquire exclusive access")

	// ErrInvariant marks a state that should be impossible in context (a Ref
	// found in a state the caller's protocol rules out). It indicates a bug
	// in the calling code, not a transient condition.
	ErrInvariant = errors.New("cache: invariant violation")
)

// WriteError wraps a failure surfaced by the reconciler's write_page so
// callers can tell eviction-protocol errors (ErrBusy, ErrInvariant) apart
// from reconciliation failures without losing the underlying cause.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "cache: write_page failed: " + e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

// DiscardError wraps a failure surfaced by discard_page.
type DiscardError struct {
	Err error
}

func (e *DiscardError) Error() string { return "cache: discard_page failed: " + e.Err.Error() }

func (e *DiscardError) Unwrap() error { return e.Err }
