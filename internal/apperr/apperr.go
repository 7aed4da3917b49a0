// Package apperr defines the checkout error taxonomy and its mappings.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfiguration        = errors.New("configuration error")
	ErrUnsupportedAction    = errors.New("unsupported action")
	ErrTransport            = errors.New("transport error")
	ErrProtocol             = errors.New("protocol error")
	ErrTimeout              = errors.New("polling timeout")
	ErrSerialization        = errors.New("serialization error")
	ErrEncryption           = errors.New("encryption error")
	ErrRedirect             = errors.New("redirect error")
	ErrMethodNotImplemented = errors.New("method not implemented")
)

// CheckoutError carries the operation that failed alongside its class.
type CheckoutError struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

// New returns a CheckoutError of the given class.
func New(kind error, op, msg string) *CheckoutError {
	return &CheckoutError{Kind: kind, Op: op, Msg: msg}
}

// Wrap returns a CheckoutError of the given class wrapping cause.
func Wrap(kind error, op, msg string, cause error) *CheckoutError {
	return &CheckoutError{Kind: kind, Op: op, Msg: msg, Err: cause}
}

func (e *CheckoutError) Error() string {
	s := e.Msg
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

// Is matches the error's class so errors.Is(err, ErrProtocol) works.
func (e *CheckoutError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrConfiguration):
		return "configuration"

	case errors.Is(err, ErrUnsupportedAction):
		return "unsupported_action"

	case errors.Is(err, ErrMethodNotImplemented):
		return "method_not_implemented"

	case errors.Is(err, ErrTimeout):
		return "timeout"

	case errors.Is(err, ErrProtocol):
		return "protocol"

	case errors.Is(err, ErrSerialization):
		return "serialization"

	case errors.Is(err, ErrEncryption):
		return "encryption"

	case errors.Is(err, ErrRedirect):
		return "redirect"

	case errors.Is(err, ErrTransport):
		return "transport"

	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrUnsupportedAction),
		errors.Is(err, ErrSerialization):
		return http.StatusBadRequest

	case errors.Is(err, ErrProtocol),
		errors.Is(err, ErrEncryption):
		return http.StatusUnprocessableEntity

	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway

	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, ErrMethodNotImplemented):
		return http.StatusNotImplemented

	default:
		return http.StatusInternalServerError
	}
}

// IsTransient reports whether a polling loop may keep ticking after err.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport)
}
