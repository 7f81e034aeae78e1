package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrTransport matches every failure surfaced by this package: network
// errors, non-2xx responses and undecodable bodies.
var ErrTransport = errors.New("transport: request failed")

// Error is a failed backend call. StatusCode is zero when no response was
// received.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("transport: %s %s: HTTP %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message())
	default:
		return fmt.Sprintf("transport: %s %s: %v", e.Method, e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) hold for every *Error.
func (e *Error) Is(target error) bool { return target == ErrTransport }

// IsNotFound reports a 404 response.
func (e *Error) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsUnauthorized reports a 401 response.
func (e *Error) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

// IsRetryable returns true for connection failures, 429 and 5xx.
// Cancellation is never retried.
func (e *Error) IsRetryable() bool {
	if e.StatusCode == 0 {
		return e.Err != nil && !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, context.DeadlineExceeded)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Message extracts the backend's error text. Below 500 the backend answers
// {"error": "..."} or {"message": "..."}; anything else is returned raw.
func (e *Error) Message() string {
	if e.StatusCode < 500 {
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal([]byte(e.Body), &body) == nil {
			if strings.TrimSpace(body.Error) != "" {
				return body.Error
			}
			if strings.TrimSpace(body.Message) != "" {
				return body.Message
			}
		}
	}
	return e.Body
}

// StatusCode returns the HTTP status of a transport failure, or zero.
func StatusCode(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.IsNotFound()
}
