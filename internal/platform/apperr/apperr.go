// Package apperr defines the small error taxonomy shared by handlers, services
// and clients. Each Kind maps to an HTTP status and a retry policy; only
// UpstreamUnavailable is retryable.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for routing to a response and a retry decision.
type Kind int

const (
	Internal Kind = iota
	Unauthorized
	Forbidden
	UpstreamUnavailable
	ValidationFailed
	StorageFull
	NotFound
)

var kindNames = map[Kind]string{
	Internal:            "internal",
	Unauthorized:        "unauthorized",
	Forbidden:           "forbidden",
	UpstreamUnavailable: "upstream_unavailable",
	ValidationFailed:    "validation_failed",
	StorageFull:         "storage_full",
	NotFound:            "not_found",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HTTPStatus returns the response status used for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case UpstreamUnavailable:
		return http.StatusBadGateway
	case ValidationFailed:
		return http.StatusUnprocessableEntity
	case StorageFull:
		return http.StatusInsufficientStorage
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether an operation failing with this kind may be retried.
func (k Kind) Retryable() bool {
	return k == UpstreamUnavailable
}

// Error carries a kind, a message that is safe to show to users, and an
// optional internal detail that is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind with a user-facing message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and user-facing message to err.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetail records internal context such as a truncated upstream body.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// Validation is shorthand for New(ValidationFailed, ...).
func Validation(format string, args ...any) *Error {
	return New(ValidationFailed, format, args...)
}

// Upstream is shorthand for Wrap(UpstreamUnavailable, ...).
func Upstream(err error, message string) *Error {
	return Wrap(UpstreamUnavailable, err, message)
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// IsRetryable reports whether err may be retried.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err).Retryable()
}

// Message returns the user-facing message for err. Errors outside the
// taxonomy collapse to a generic message so internals never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}
