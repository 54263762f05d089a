package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport is wrapped by every failure that originates in the remote
// store: network errors, HTTP errors and exhausted retries. Use
// errors.Is(err, remote.ErrTransport) to tell remote failures apart from
// local validation errors.
var ErrTransport = errors.New("remote: transport failure")

// Sentinel errors for status classification.
var (
	ErrBadRequest   = errors.New("remote: bad request")
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrForbidden    = errors.New("remote: forbidden")
	ErrNotFound     = errors.New("remote: not found")
	ErrThrottled    = errors.New("remote: throttled")
	ErrServerError  = errors.New("remote: server error")
)

// Error is a classified remote failure. It matches both ErrTransport and
// the status sentinel in Err.
type Error struct {
	Op         string // "search", "create" or "get"
	StatusCode int    // 0 for network errors
	Message    string
	Err        error // sentinel or underlying network error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	}

	if e.Err != nil {
		return fmt.Sprintf("remote: %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("remote: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}

	return []error{ErrTransport, e.Err}
}

// NewStatusError builds an Error for an HTTP status code.
func NewStatusError(op string, code int, message string) *Error {
	return &Error{
		Op:         op,
		StatusCode: code,
		Message:    message,
		Err:        ClassifyStatus(code),
	}
}

// ClassifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes with no dedicated sentinel.
func ClassifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// IsRetryable reports whether the given HTTP status code should be retried.
func IsRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
