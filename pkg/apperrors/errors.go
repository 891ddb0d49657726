// Package apperrors holds sentinel errors shared across packages. Richer,
// context-carrying error kinds (DescriptorError, MacroError, JoinError,
// ValidationError, PolicyError, ExecutionError) are typed errors defined in
// the packages that raise them.
package apperrors

import "errors"

var (
	// ErrNotFound is returned by repositories and stores when a lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a write that violates a uniqueness or state invariant.
	ErrConflict = errors.New("conflict")

	// ErrBreakerOpen is transient: the circuit breaker is open and the call
	// was rejected without contacting the underlying service.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrLimitReached is terminal to a request: a phase step ceiling or a
	// repair-attempt cap was exceeded.
	ErrLimitReached = errors.New("limit reached")
)
