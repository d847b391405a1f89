// Package apperr defines the error kinds shared by every module.
// Modules return *Error values for failures the caller should see;
// the API layer is the only place that maps a Kind to a transport status.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// InternalMessage is shown to clients for any unexpected failure.
const InternalMessage = "Server Error"

// Error is a classified failure with a stable, client-safe message.
// It is JSON-encodable so it can travel inside service responses.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// Detail carries the underlying cause for internal errors. It is never
	// rendered to clients outside development mode.
	Detail string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation creates a validation error.
func Validation(message string) *Error { return New(KindValidation, message) }

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// NotFound creates a not-found error.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Conflict creates a conflict error.
func Conflict(message string) *Error { return New(KindConflict, message) }

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	e := New(KindInternal, InternalMessage)
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Wire converts any error into an *Error suitable for a service response.
// Unclassified errors become internal errors.
func Wire(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
