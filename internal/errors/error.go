package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every domain failure wraps exactly one of them.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrExternalService = errors.New("external service error")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

var (
	ErrEmptyAuth    = errors.New("missing authorization")
	ErrEmptySubject = errors.New("missing subject")
	ErrTokenInvalid = errors.New("invalid token")
)

// Error pairs a kind with a message that is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s with error=%s", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

func Validation(format string, args ...any) error {
	return newError(ErrValidation, nil, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, nil, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, nil, format, args...)
}

func ExternalService(cause error, format string, args ...any) error {
	return newError(ErrExternalService, cause, format, args...)
}

func Unauthenticated(format string, args ...any) error {
	return newError(ErrUnauthenticated, nil, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newError(ErrForbidden, nil, format, args...)
}

// StatusCode maps an error onto the HTTP status the edge should answer with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrEmptyAuth),
		errors.Is(err, ErrEmptySubject),
		errors.Is(err, ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the caller-safe message of err. Errors that do not
// carry one are reported generically so internals never leak.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	switch StatusCode(err) {
	case http.StatusUnauthorized:
		return "unauthenticated"
	default:
		return "internal server error"
	}
}
