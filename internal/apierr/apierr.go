// Package apierr defines the closed set of error kinds the gateway exposes.
// Every failure that crosses the HTTP boundary is one of these kinds; raw
// provider errors never escape unwrapped.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway error.
type Kind string

const (
	// KindValidation covers malformed or missing caller input. Never retried.
	KindValidation Kind = "validation"
	// KindAuth covers a missing, invalid, or expired credential chain.
	KindAuth Kind = "auth"
	// KindPermission covers a valid credential with an insufficient grant.
	// It never triggers a token refresh.
	KindPermission Kind = "permission"
	// KindRateLimit covers the advisory throttle.
	KindRateLimit Kind = "rate_limit"
	// KindInsufficientCredits covers the paid-tier gate.
	KindInsufficientCredits Kind = "insufficient_credits"
	// KindUpstream covers network errors, timeouts, and 5xx from providers.
	KindUpstream Kind = "upstream"
)

// Error is a structured gateway error with a stable code for client handling.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}
}

// New creates an error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WithDetails attaches structured details and returns the error.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps an error kind to its response status. The switch is
// exhaustive over the Kind constants.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindInsufficientCredits:
		return http.StatusPaymentRequired
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Auth creates a KindAuth error.
func Auth(code, message string) *Error {
	return New(KindAuth, code, message)
}

// Validation creates a KindValidation error.
func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

// Permission creates a KindPermission error.
func Permission(code, message string) *Error {
	return New(KindPermission, code, message)
}

// RateLimited creates a KindRateLimit error carrying remaining/reset metadata.
func RateLimited(remaining int, resetAt int64) *Error {
	e := New(KindRateLimit, "rate_limit_exceeded", "Too many requests. Please try again later.")
	e.Details = map[string]interface{}{
		"remaining": remaining,
		"reset_at":  resetAt,
	}
	return e
}

// InsufficientCredits creates a KindInsufficientCredits error.
func InsufficientCredits(balance int) *Error {
	e := New(KindInsufficientCredits, "insufficient_credits", "Not enough credits for this operation.")
	e.Details = map[string]interface{}{"balance": balance}
	return e
}

// Upstream creates a KindUpstream error.
func Upstream(code, message string) *Error {
	return New(KindUpstream, code, message)
}

// FromError returns err as *Error, or wraps it as an internal upstream error.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Upstream("internal_error", err.Error())
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}
