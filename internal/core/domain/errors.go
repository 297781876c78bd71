// Package domain defines the core domain models for WirePool.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "WP-SESS-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates the requested session was not found.
	ErrSessionNotFound = NewDomainError("WP-SESS-4040", "session not found")

	// ErrAccessDenied indicates the caller does not own the session.
	ErrAccessDenied = NewDomainError("WP-SESS-4030", "access denied")

	// ErrSessionValidation indicates session input validation failed.
	ErrSessionValidation = NewDomainError("WP-SESS-4001", "session validation failed")

	// ErrIllegalTransition indicates a state machine transition was rejected.
	ErrIllegalTransition = NewDomainError("WP-SESS-4090", "illegal session state transition")

	// ErrSessionNotConnected indicates an operation that requires the
	// Connected state was attempted in another state.
	ErrSessionNotConnected = NewDomainError("WP-SESS-4091", "session is not connected")

	// ErrConnectTimeout indicates a connecting session missed its deadline.
	ErrConnectTimeout = NewDomainError("WP-SESS-5040", "session timed out while connecting")
)

// ============================================================================
// Node Errors (NODE)
// ============================================================================

var (
	// ErrNodeNotFound indicates the requested node was not found.
	ErrNodeNotFound = NewDomainError("WP-NODE-4040", "node not found")

	// ErrAtCapacity indicates a reservation was refused on a full node.
	ErrAtCapacity = NewDomainError("WP-NODE-4090", "node at capacity")

	// ErrNoCapacityAvailable indicates no node in the pool can accept a session.
	ErrNoCapacityAvailable = NewDomainError("WP-NODE-5030", "no capacity available")

	// ErrNodeOffline indicates the node is offline and accepts no reservations.
	ErrNodeOffline = NewDomainError("WP-NODE-4091", "node offline")
)

// ============================================================================
// Credential / Tunnel Errors (CRED, TUNN)
// ============================================================================

var (
	// ErrCredentialGeneration indicates per-session key material could not
	// be generated. Fatal to the connect attempt, the node slot is released.
	ErrCredentialGeneration = NewDomainError("WP-CRED-5000", "credential generation failed")

	// ErrTunnelEstablish indicates the tunnel provisioner rejected the session.
	ErrTunnelEstablish = NewDomainError("WP-TUNN-5020", "tunnel establishment failed")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("WP-SYS-5000", "internal server error")

	// ErrPersistenceFailed indicates the config store could not persist
	// or delete a session payload.
	ErrPersistenceFailed = NewDomainError("WP-SYS-5001", "persistence failed")

	// ErrRateLimited indicates too many requests within the window.
	ErrRateLimited = NewDomainError("WP-SYS-4290", "too many requests")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("WP-SYS-4000", "bad request")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("WP-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("WP-ARG-1002", "missing required argument")
)
