// Package apperr defines the service error taxonomy. Every failure
// that crosses a handler boundary is one of these kinds, so handlers
// map kind to HTTP status exactly once instead of string-matching
// error messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates the failure classes of the service.
type Kind int

const (
	// KindUnknown covers errors that were never classified.
	KindUnknown Kind = iota
	// KindAuthentication is a bad credential (401).
	KindAuthentication
	// KindAuthorization is a valid credential with the wrong scope (403).
	KindAuthorization
	// KindRateLimited is a temporarily blocked key (429).
	KindRateLimited
	// KindNotFound is an unknown workspace/expert/slot/resource (404).
	KindNotFound
	// KindInvalidTransition is a state-machine precondition violation (400).
	KindInvalidTransition
	// KindValidation is missing or malformed input (400).
	KindValidation
	// KindStorage is an unexpected backend error (500).
	KindStorage
)

// Error carries a kind, a user-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	// RetryAfterSeconds is set only for KindRateLimited.
	RetryAfterSeconds int
	cause             error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind to its response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

func RateLimited(message string, retryAfterSeconds int) *Error {
	return &Error{Kind: KindRateLimited, Message: message, RetryAfterSeconds: retryAfterSeconds}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func InvalidTransition(message string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Storage(message string, cause error) *Error {
	return &Error{Kind: KindStorage, Message: message, cause: cause}
}

// KindOf extracts the kind from an error chain. Unclassified errors
// report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// From returns the *Error in the chain, or wraps err as a storage
// failure so callers always have a mappable kind.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Storage("unexpected error", err)
}
