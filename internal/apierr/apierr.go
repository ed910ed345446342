// Package apierr defines the typed outcomes the tenancy and rbac packages
// return. Each error carries a stable machine-readable code; handlers
// translate them into the JSON envelope without inventing status codes of
// their own.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable reason codes exposed in the HTTP envelope. Consumers match on these,
// not on messages.
const (
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeNoActiveTenant   = "TENANT_NOT_RESOLVED"
	CodeNotAMember       = "TENANT_NOT_MEMBER"
	CodePermissionDenied = "TENANT_PERMISSION_DENIED"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInternal         = "INTERNAL_ERROR"
)

// Error is a terminal request outcome with a stable code and HTTP status.
type Error struct {
	Code    string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is matches by code so sentinel comparisons survive wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error with the given code, status and message.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a cause to a new error.
func Wrap(code string, status int, message string, cause error) *Error {
	return &Error{Code: code, Status: status, Message: message, Cause: cause}
}

// Sentinel outcomes shared across the service.
var (
	ErrUnauthenticated  = New(CodeUnauthenticated, http.StatusUnauthorized, "authentication required")
	ErrNoActiveTenant   = New(CodeNoActiveTenant, http.StatusNotFound, "no active tenant could be resolved")
	ErrNotAMember       = New(CodeNotAMember, http.StatusForbidden, "user is not a member of the requested tenant")
	ErrPermissionDenied = New(CodePermissionDenied, http.StatusForbidden, "role does not grant the required permission")
)

// From extracts an *Error from err, or nil when err carries none.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Internal wraps an unexpected failure with the generic internal code.
func Internal(message string, cause error) *Error {
	return Wrap(CodeInternal, http.StatusInternalServerError, message, cause)
}
