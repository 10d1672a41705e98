package instance

import (
	"errors"
	"fmt"
)

// Sentinels returned by Store implementations.
var (
	// ErrNotFound means no row exists for the given id or key.
	ErrNotFound = errors.New("not found")

	// ErrNotPending means a coverage request was already accepted or
	// declined when a resolution was attempted.
	ErrNotPending = errors.New("coverage request is not pending")
)

// Error is the typed failure returned by every operation in this package.
//
// Codes:
//   - NOT_AUTHENTICATED: no caller identity; nothing was touched
//   - NOT_FOUND: a referenced note or coverage request does not exist
//   - STORE_FAILURE: the store call failed; Err carries the cause
//   - ALREADY_RESOLVED: a coverage request was answered before
//   - INVALID_ARGUMENT: malformed input (entity type, empty note, zero time)
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Err     error
}

// ErrorCode categorizes failures.
type ErrorCode string

const (
	ErrCodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeStoreFailure     ErrorCode = "STORE_FAILURE"
	ErrCodeAlreadyResolved  ErrorCode = "ALREADY_RESOLVED"
	ErrCodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// storeFailure wraps a store error. ErrNotFound passes through as a NOT_FOUND
// error so note and request lookups report it precisely.
func storeFailure(op string, err error) *Error {
	if errors.Is(err, ErrNotFound) {
		return newError(ErrCodeNotFound, op, "record does not exist", err)
	}
	return newError(ErrCodeStoreFailure, op, "store call failed", err)
}

func errNotAuthenticated(op string) *Error {
	return newError(ErrCodeNotAuthenticated, op, "caller identity required", nil)
}

// CodeOf returns the error code of err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotAuthenticated reports whether err is a NOT_AUTHENTICATED failure.
func IsNotAuthenticated(err error) bool { return CodeOf(err) == ErrCodeNotAuthenticated }

// IsNotFound reports whether err is a NOT_FOUND failure or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound || errors.Is(err, ErrNotFound)
}

// IsStoreFailure reports whether err is a STORE_FAILURE.
func IsStoreFailure(err error) bool { return CodeOf(err) == ErrCodeStoreFailure }

// IsAlreadyResolved reports whether err is an ALREADY_RESOLVED failure.
func IsAlreadyResolved(err error) bool { return CodeOf(err) == ErrCodeAlreadyResolved }

// IsInvalidArgument reports whether err is an INVALID_ARGUMENT failure.
func IsInvalidArgument(err error) bool { return CodeOf(err) == ErrCodeInvalidArgument }
