// Package gwerrors defines the gateway's closed set of error kinds.
//
// Kinds are string constants carried by *Error; Is and KindOf find an *Error
// in a wrapped chain (via errors.As) and compare its Kind. Only truly unrecoverable internal conditions should escape as Go
// panics; everything else is returned as a *Error and mapped to an HTTP
// status at the admission boundary.
package gwerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the closed error kinds from spec §7.
type Kind string

const (
	Invalid                 Kind = "Invalid"
	Unauthorized            Kind = "Unauthorized"
	Forbidden               Kind = "Forbidden"
	PromptInjectionDetected Kind = "PromptInjectionDetected"
	SensitiveOperation      Kind = "SensitiveOperationDetected"
	RateLimitExceeded       Kind = "RateLimitExceeded"
	DownstreamTransient     Kind = "DownstreamTransient"
	DownstreamPermanent     Kind = "DownstreamPermanent"
	Timeout                 Kind = "Timeout"
	Canceled                Kind = "Canceled"
	Internal                Kind = "Internal"
)

// HTTPStatus returns the default status code for a kind per spec §7.
// Forbidden can be 401 or 403 depending on cause; callers that know the
// cause should set Error.Status explicitly instead of relying on this.
func (k Kind) HTTPStatus() int {
	switch k {
	case Invalid, PromptInjectionDetected, SensitiveOperation:
		return 400
	case Unauthorized:
		return 401
	case Forbidden:
		return 403
	case RateLimitExceeded:
		return 429
	case Canceled:
		return 408
	case DownstreamTransient, DownstreamPermanent, Timeout, Internal:
		return 500
	default:
		return 500
	}
}

// Error is a structured gateway error with a Kind, a message, and an
// optional wrapped cause.
type Error struct {
	Kind       Kind
	Message    string
	Status     int // overrides Kind.HTTPStatus() when non-zero
	RetryAfter int // seconds, set for RateLimitExceeded
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns Status if set, else the Kind's default.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Kind.HTTPStatus()
}

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or Internal if err is not a *Error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return Internal
}
