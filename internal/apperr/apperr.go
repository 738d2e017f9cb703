// Package apperr defines the error kinds surfaced at the request boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUpstream          = errors.New("upstream failure")
	ErrPaymentIncomplete = errors.New("payment incomplete")
)

// Error carries a kind (one of the Err* sentinels), a client-facing message and
// an optional cause. errors.Is matches both the kind and the cause chain.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Cause }

func newf(kind error, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

func Validation(format string, args ...any) error {
	return newf(ErrValidation, nil, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(ErrNotFound, nil, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newf(ErrForbidden, nil, format, args...)
}

func InsufficientStock(format string, args ...any) error {
	return newf(ErrInsufficientStock, nil, format, args...)
}

func PaymentIncomplete(format string, args ...any) error {
	return newf(ErrPaymentIncomplete, nil, format, args...)
}

// Upstream wraps a failed store or gateway call.
func Upstream(cause error, format string, args ...any) error {
	return newf(ErrUpstream, cause, format, args...)
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrPaymentIncomplete):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message. The cause of an upstream failure
// and errors of unknown kind are never echoed.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
