package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return IsTransientHTTPStatus(e.StatusCode)
}

// IsTransient reports whether err is safe to retry: a transient HTTP status,
// a network timeout, or a refused or reset connection. Cancellation and
// deadline expiry of the caller's context are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// IsTransientHTTPStatus reports whether an HTTP status indicates a
// temporary server-side condition.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 502, 503, 504:
		return true
	default:
		return false
	}
}
