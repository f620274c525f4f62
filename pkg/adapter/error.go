package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorCode is a stable, provider independent failure kind. Codes are stored
// in performance records, so they must not change.
type ErrorCode string

const (
	CodeTimeout           ErrorCode = "timeout"
	CodeConnectionRefused ErrorCode = "connection_refused"
	CodeHTTPStatus        ErrorCode = "http_status"
	CodeAuthRequired      ErrorCode = "auth_required"
	CodeParseError        ErrorCode = "parse_error"
	CodeUnknown           ErrorCode = "unknown"
)

// Error wraps provider errors with a code and status metadata.
type Error struct {
	Code      ErrorCode
	Status    int
	Temporary bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("adapter error (code=%s status=%d)", e.Code, e.Status)
	}
	return fmt.Sprintf("adapter error (code=%s)", e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// statusError builds an *Error from an HTTP status returned by a provider.
func statusError(status int, err error) *Error {
	code := CodeHTTPStatus
	if status == 401 || status == 403 {
		code = CodeAuthRequired
	}
	return &Error{Code: code, Status: status, Err: err}
}

// Classify maps any error to a stable code. It returns "" for nil.
func Classify(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var adapterErr *Error
	if errors.As(err, &adapterErr) {
		if adapterErr.Code != "" {
			return adapterErr.Code
		}
		if adapterErr.Status != 0 {
			return statusError(adapterErr.Status, nil).Code
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused") {
		return CodeConnectionRefused
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return CodeParseError
	}
	return CodeUnknown
}

// IsTransient reports whether an error is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var adapterErr *Error
	if errors.As(err, &adapterErr) {
		if adapterErr.Temporary {
			return true
		}
		if adapterErr.Status == 429 || (adapterErr.Status >= 500 && adapterErr.Status <= 599) {
			return true
		}
		if adapterErr.Code == CodeTimeout {
			return true
		}
	}
	return false
}
