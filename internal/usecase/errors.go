package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrorInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorRateLimited      ErrorCode = "RATE_LIMITED"
	ErrorConfiguration    ErrorCode = "CONFIGURATION_ERROR"
	ErrorUpstream         ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

// Messages returned to callers. Upstream detail never appears in these.
const (
	MsgMethodNotAllowed = "Method not allowed"
	MsgMessageRequired  = "Message is required"
	MsgInvalidBody      = "Invalid request body"
	MsgInvalidHistory   = "Invalid history"
	MsgTooManyRequests  = "Too many requests"
	MsgKeyNotConfigured = "OpenAI API key not configured"
	MsgUpstreamFailed   = "Failed to get AI response"
	MsgInternalError    = "Internal server error"
	FallbackReply       = "Sorry, I could not generate a response."
)

// Error is the relay's classified failure. Message is what the caller sees;
// Reason and Err are for server-side logs only.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}

// MethodNotAllowed is the rejection both adapters return before reading a body.
func MethodNotAllowed(method string) *Error {
	return newError(ErrorMethodNotAllowed, "method_"+method, MsgMethodNotAllowed, nil)
}

// InvalidBody rejects a request whose body could not be read or decoded.
func InvalidBody(err error) *Error {
	return newError(ErrorInvalidRequest, "invalid_body", MsgInvalidBody, err)
}

// Internal wraps an unexpected failure, including recovered panics.
func Internal(reason string, err error) *Error {
	return newError(ErrorInternal, reason, MsgInternalError, err)
}

// Describe maps any error to the HTTP status and caller-safe message.
// Values that are not *Error are treated as internal failures.
func Describe(err error) (int, string) {
	var relayErr *Error
	if !errors.As(err, &relayErr) {
		return http.StatusInternalServerError, MsgInternalError
	}
	msg := relayErr.Message
	switch relayErr.Code {
	case ErrorMethodNotAllowed:
		return http.StatusMethodNotAllowed, orDefault(msg, MsgMethodNotAllowed)
	case ErrorInvalidRequest:
		return http.StatusBadRequest, orDefault(msg, MsgInvalidBody)
	case ErrorRateLimited:
		return http.StatusTooManyRequests, orDefault(msg, MsgTooManyRequests)
	case ErrorConfiguration:
		return http.StatusInternalServerError, orDefault(msg, MsgKeyNotConfigured)
	case ErrorUpstream:
		return http.StatusInternalServerError, orDefault(msg, MsgUpstreamFailed)
	default:
		return http.StatusInternalServerError, MsgInternalError
	}
}

// ReasonOf returns the log reason of a classified error, or "unexpected".
func ReasonOf(err error) string {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr.Reason
	}
	return "unexpected"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
