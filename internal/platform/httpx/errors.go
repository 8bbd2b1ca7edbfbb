// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a domain error tagged with one of the sentinel classes above and a stable
// reason code clients can branch on.
type Error struct {
	Class   error
	Code    string
	Message string
}

// NewError builds a classified domain error.
func NewError(class error, code, message string) *Error {
	return &Error{Class: class, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Class
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	code := ""
	var domainErr *Error
	if errors.As(err, &domainErr) {
		code = domainErr.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		problem(w, http.StatusNotFound, "Not Found", err.Error(), code)
	case errors.Is(err, ErrDuplicate):
		problem(w, http.StatusConflict, "Duplicate", err.Error(), code)
	case errors.Is(err, ErrConflict):
		problem(w, http.StatusConflict, "Conflict", err.Error(), code)
	case errors.Is(err, ErrValidation):
		problem(w, http.StatusBadRequest, "Validation Failed", err.Error(), code)
	case errors.Is(err, ErrForbidden):
		problem(w, http.StatusForbidden, "Forbidden", err.Error(), code)
	case errors.Is(err, ErrUnauthorized):
		problem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), code)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsClientError reports whether err maps to a 4xx response.
func IsClientError(err error) bool {
	for _, class := range []error{ErrNotFound, ErrDuplicate, ErrConflict, ErrValidation, ErrForbidden, ErrUnauthorized} {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}
