// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer. Services return *Error values; handlers map them to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure.
type Code string

const (
	NotFound        Code = "NotFound"
	Forbidden       Code = "Forbidden"
	Unauthenticated Code = "Unauthenticated"
	InvalidInput    Code = "InvalidInput"
	Conflict        Code = "Conflict"
	Internal        Code = "Internal"
)

// Error is a classified application error.
type Error struct {
	Code    Code
	Message string
	// Resource identifies what the caller attempted to access. Only set on
	// user-facing authorization failures, never on device paths.
	Resource string
	// Fields holds per-field validation messages.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Resource != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Resource)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Key returns the short code used as the key of the error payload map.
func (e *Error) Key() string {
	switch e.Code {
	case Unauthenticated:
		return "401"
	case Forbidden:
		return "403"
	case NotFound:
		return "404"
	case InvalidInput:
		return "invalidDtoIn"
	case Conflict:
		return "409"
	default:
		return "500"
	}
}

// New creates an error with the given code.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, format, args...)
}

func Unauthenticatedf(format string, args ...any) *Error {
	return New(Unauthenticated, format, args...)
}

// ForbiddenOn reports insufficient privilege on the named resource.
func ForbiddenOn(resource, format string, args ...any) *Error {
	e := New(Forbidden, format, args...)
	e.Resource = resource
	return e
}

func Invalidf(format string, args ...any) *Error {
	return New(InvalidInput, format, args...)
}

// InvalidFields reports a validation failure with per-field details.
func InvalidFields(message string, fields map[string]string) *Error {
	return &Error{Code: InvalidInput, Message: message, Fields: fields}
}

// Wrap classifies err as an internal failure.
func Wrap(err error, format string, args ...any) *Error {
	return &Error{Code: Internal, Message: fmt.Sprintf(format, args...), Err: err}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err. Unclassified errors are Internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps a code to its transport status.
func HTTPStatus(code Code) int {
	switch code {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidInput:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
