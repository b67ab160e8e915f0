package line

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var ErrInvalidSignature = errors.New("invalid signature")

// ErrorType categorizes reply failures for logging.
type ErrorType string

const (
	ErrAuth         ErrorType = "auth_error"    // 401/403, bad channel access token
	ErrInvalidReply ErrorType = "invalid_reply" // 400, expired or reused reply token, bad payload
	ErrRateLimit    ErrorType = "rate_limit"    // 429
	ErrServer       ErrorType = "server_error"  // 5xx
	ErrTimeout      ErrorType = "timeout"       // client timeout or context deadline
	ErrTransport    ErrorType = "transport"     // anything else before a response arrived
)

// APIError is a non-2xx response from the LINE API.
type APIError struct {
	StatusCode int
	Message    string
	Details    []ErrorDetail
	RequestID  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("line API status %d: %s", e.StatusCode, e.Message)
	for _, d := range e.Details {
		msg += fmt.Sprintf(" (%s: %s)", d.Property, d.Message)
	}
	return msg
}

// Classify maps a client error to an ErrorType.
func Classify(err error) ErrorType {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return ErrAuth
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return ErrRateLimit
		case apiErr.StatusCode >= 500:
			return ErrServer
		default:
			return ErrInvalidReply
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrTransport
}
