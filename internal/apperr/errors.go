// Package apperr is the error taxonomy shared by the service and HTTP layers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation           Kind = "VALIDATION_ERROR"
	KindNotFound             Kind = "NOT_FOUND"
	KindConflict             Kind = "CONFLICT"
	KindQuotaExceeded        Kind = "QUOTA_EXCEEDED"
	KindNoActiveSubscription Kind = "NO_ACTIVE_SUBSCRIPTION"
	KindInsufficientFunds    Kind = "INSUFFICIENT_FUNDS"
	KindAuth                 Kind = "AUTH_ERROR"
	KindInternal             Kind = "INTERNAL_ERROR"
)

// Error is an expected, caller-facing outcome. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.NotFound("")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func newError(kind Kind, status int, format string, args ...any) *Error {
	return &Error{Kind: kind, Status: status, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, http.StatusBadRequest, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, http.StatusNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, http.StatusConflict, format, args...)
}

func QuotaExceeded(format string, args ...any) *Error {
	return newError(KindQuotaExceeded, http.StatusTooManyRequests, format, args...)
}

func NoActiveSubscription(format string, args ...any) *Error {
	return newError(KindNoActiveSubscription, http.StatusPaymentRequired, format, args...)
}

func InsufficientFunds(format string, args ...any) *Error {
	return newError(KindInsufficientFunds, http.StatusConflict, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(KindAuth, http.StatusUnauthorized, format, args...)
}

// Forbidden is an AuthError for an authenticated caller lacking the role.
func Forbidden(format string, args ...any) *Error {
	return newError(KindAuth, http.StatusForbidden, format, args...)
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: "internal error", Err: err}
}

// KindOf reports the kind of err, or KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// From returns err as an *Error, wrapping unclassified errors as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
