package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error carries the HTTP status and machine code a failure should surface as.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(http.StatusBadRequest, "invalid_input", fmt.Errorf(format, args...))
}

// InvalidInput wraps a validation failure produced below the handler layer.
func InvalidInput(err error) *Error {
	return New(http.StatusBadRequest, "invalid_input", err)
}

func NotFound(code, msg string) *Error {
	if code == "" {
		code = "not_found"
	}
	return New(http.StatusNotFound, code, errors.New(msg))
}

func Forbidden(msg string) *Error {
	return New(http.StatusForbidden, "forbidden", errors.New(msg))
}

func Unauthorized(msg string) *Error {
	return New(http.StatusUnauthorized, "unauthorized", errors.New(msg))
}

func Conflict(msg string, cause error) *Error {
	if cause == nil {
		cause = errors.New(msg)
	} else {
		cause = fmt.Errorf("%s: %w", msg, cause)
	}
	return New(http.StatusConflict, "conflict", cause)
}

// Upstream wraps a third-party failure. The cause is kept for logs; PublicMessage
// hides it from callers.
func Upstream(msg string, cause error) *Error {
	if cause == nil {
		cause = errors.New(msg)
	} else {
		cause = fmt.Errorf("%s: %w", msg, cause)
	}
	return New(http.StatusBadGateway, "upstream_failed", cause)
}

func Internal(cause error) *Error {
	return New(http.StatusInternalServerError, "internal", cause)
}

// From normalizes any error into an *Error. Unknown errors become 500s.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(http.StatusGatewayTimeout, "timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return New(499, "canceled", err)
	}
	return Internal(err)
}

// PublicMessage is the message safe to return to a caller.
func (e *Error) PublicMessage() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Status >= 500 && e.Code == "upstream_failed":
		return "upstream service failed"
	case e.Code == "timeout":
		return "request timed out"
	case e.Status >= 500:
		return "internal error"
	default:
		return e.Error()
	}
}

func IsCode(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

func StatusOf(err error) int {
	if ae := From(err); ae != nil {
		return ae.Status
	}
	return http.StatusOK
}
