// Package errs carries a small set of error codes through the service
// layers so handlers can pick a status page without string matching.
package errs

import (
	"errors"
	"net/http"
)

// Code classifies an error for the HTTP layer.
type Code string

const (
	InvalidArgument  Code = "invalid_argument"
	Unauthenticated  Code = "unauthenticated"
	PermissionDenied Code = "permission_denied"
	NotFound         Code = "not_found"
	AlreadyExists    Code = "already_exists"
	RateLimited      Code = "rate_limited"
	Internal         Code = "internal"
)

var statusByCode = map[Code]int{
	InvalidArgument:  http.StatusBadRequest,
	Unauthenticated:  http.StatusUnauthorized,
	PermissionDenied: http.StatusForbidden,
	NotFound:         http.StatusNotFound,
	AlreadyExists:    http.StatusConflict,
	RateLimited:      http.StatusTooManyRequests,
	Internal:         http.StatusInternalServerError,
}

// genericMessage replaces the text of errors that carry no code.
const genericMessage = "internal error"

// Error pairs a Code with a message that is safe to show a user.
// Cause, if set, stays available to errors.Is and errors.As.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "":
		return e.Message
	case e.Cause != nil:
		return e.Cause.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func find(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// CodeOf returns the first Code in err's chain, or Internal.
func CodeOf(err error) Code {
	if e := find(err); e != nil && e.Code != "" {
		return e.Code
	}
	return Internal
}

// Is reports whether err's chain carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns text fit for a page. Uncoded errors never leak their
// text.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	if e := find(err); e != nil && e.Message != "" {
		return e.Message
	}
	return genericMessage
}

// HTTPStatus maps a Code to a status; unknown codes give 500.
func HTTPStatus(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
