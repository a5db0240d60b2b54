package ai

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"
)

// Error is the classified provider failure. Retry policy is a pure
// function over this value: no exception-type inspection anywhere.
type Error struct {
	Provider   string
	Status     int           // HTTP status, 0 for network-level failures
	RetryAfter time.Duration // server-supplied hint, 0 when absent
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status=%d %s", e.Provider, e.Status, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is expected to be transient:
// 5xx, 429, 408, or a network timeout/connection reset.
func (e *Error) Retryable() bool {
	if e.Status >= 500 || e.Status == 429 || e.Status == 408 {
		return true
	}
	if e.Status != 0 {
		return false
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(e.Err, syscall.ECONNRESET)
}

// RetryAfterHint returns the server wait hint for the retry loop.
func (e *Error) RetryAfterHint() time.Duration { return e.RetryAfter }

// statusError builds an Error from a non-2xx response.
func statusError(provider string, status int, retryAfter string, body []byte) *Error {
	return &Error{
		Provider:   provider,
		Status:     status,
		RetryAfter: parseRetryAfter(retryAfter),
		Msg:        truncate(body),
	}
}

// transportError wraps a round-trip failure (timeout, reset, DNS).
func transportError(provider string, err error) *Error {
	return &Error{Provider: provider, Err: err}
}

// parseRetryAfter reads a Retry-After header as whole seconds. The HTTP-date
// form is rare on these APIs and is ignored.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	secs, err := strconv.Atoi(h)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
