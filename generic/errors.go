/*
errors.go - Centralized error taxonomy for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability. The
  ledger, workflow, HTTP API and remote client all speak this taxonomy, so
  an error raised by the server's ledger comes back out of the client as
  the same Go type.

ERROR CATEGORIES:
  1. Validation - malformed or missing input (field + reason)
  2. InvalidTransition - status change not permitted from the current status
  3. InsufficientBalance - requested days exceed remaining entitlement
  4. NotFound - unknown request or employee id
  5. Unauthorized - actor lacks the capability
  6. Transport - network/API failure, the only category the client mirror
     recovers from
  7. RateLimited - the server refused the call for now; the client treats
     it as a transport failure

USAGE:
  if errors.Is(err, generic.ErrInsufficientBalance) {
      var ib *generic.InsufficientBalanceError
      errors.As(err, &ib)
  }

SEE ALSO:
  - api/errors.go: Maps codes to HTTP status
  - client/remote.go: Maps HTTP error bodies back to these types
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a status change is not reachable
	// from the request's current status.
	ErrInvalidTransition = errors.New("request already finalized")

	// ErrInsufficientBalance is returned when requested days exceed the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound is returned for unknown request or employee ids.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the actor lacks a capability.
	ErrUnauthorized = errors.New("permission denied")

	// ErrTransport is returned when the backing API cannot be reached or
	// answers with a server-side failure.
	ErrTransport = errors.New("transport failure")

	// ErrRateLimited is returned when a caller exceeds its request rate.
	ErrRateLimited = errors.New("too many requests")

	// ErrEmployeeNotLinked is returned when the acting user cannot be resolved
	// to an employee record.
	ErrEmployeeNotLinked = errors.New("employee record not linked")
)

// Error codes carried over the wire.
const (
	CodeValidation          = "VALIDATION"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotLinked           = "NOT_LINKED"
	CodeTransport           = "TRANSPORT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidTransitionError records the rejected edge of the state machine.
type InvalidTransitionError struct {
	ID   string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("request already finalized: cannot move %s from %s to %s", e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EntityID  EntityID
	Resource  ResourceType
	Available Amount
	Requested Amount
	Shortfall Amount
}

func (e *InsufficientBalanceError) Error() string {
	resource := ""
	if e.Resource != nil {
		resource = e.Resource.ResourceID() + " "
	}
	return fmt.Sprintf("insufficient %sbalance: remaining %v, requested %v, shortfall %v",
		resource, e.Available.Value, e.Requested.Value, e.Shortfall.Value)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// NotFoundError never echoes more than the identifier the caller supplied.
type NotFoundError struct {
	Kind string // "request", "employee"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnauthorizedError keeps the capability for logs; Error() says nothing about it.
type UnauthorizedError struct {
	Capability string
}

func (e *UnauthorizedError) Error() string { return "permission denied" }

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// TransportError wraps a network or server-side failure of a remote call.
type TransportError struct {
	Op         string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transport failure (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Code returns the wire code of an error.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmployeeNotLinked):
		return CodeNotLinked
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrTransport):
		return CodeTransport
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// IsTransport returns true if the error is a recoverable transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
