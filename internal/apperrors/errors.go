package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error the way the API surfaces it to callers.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidArgument
	CodeNotFound
	CodeFailedPrecondition
	CodeUnauthenticated
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeFailedPrecondition:
		return "FAILED_PRECONDITION"
	case CodeUnauthenticated:
		return "UNAUTHENTICATED"
	default:
		return "INTERNAL"
	}
}

// Error carries a caller-facing code and message plus the wrapped cause.
// The cause is for server-side logging only and is never serialized.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func InvalidArgument(message string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func FailedPrecondition(message string) *Error {
	return &Error{Code: CodeFailedPrecondition, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: message}
}

func Internal(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// anything that is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-facing message of err. Unclassified errors
// get a generic message so storage and broker detail is not leaked.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeInternal {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error to the HTTP status the transport layer responds
// with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// FromStatusCode converts a downstream HTTP status into an *Error so remote
// failures propagate to the caller with their original classification.
func FromStatusCode(status int, message string) *Error {
	switch status {
	case http.StatusBadRequest:
		return InvalidArgument(message)
	case http.StatusNotFound:
		return NotFound(message)
	case http.StatusPreconditionFailed:
		return FailedPrecondition(message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return Unauthenticated(message)
	default:
		return Internal(message, fmt.Errorf("remote service returned status %d", status))
	}
}
