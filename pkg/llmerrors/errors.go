// Package llmerrors classifies provider failures so the gateway can log and report them
// uniformly regardless of which SDK produced them.
package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType is the category of a provider failure.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents 5xx, timeouts and connection failures.
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents a successful call that produced neither text nor tool calls.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents 401/403 and bad API keys.
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed or rejected requests.
	ErrorTypeBadPrompt
	// ErrorTypeUnknown is the default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error represents a classified provider error.
type Error struct {
	Err        error     // wrapped underlying error
	Message    string    // human-readable message
	Type       ErrorType // classified error type
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("LLM error (%s): %s: %v", e.Type, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("LLM error (%s): %s", e.Type, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("LLM error (%s): %v", e.Type, e.Err)
	default:
		return fmt.Sprintf("LLM error (%s): status %d", e.Type, e.StatusCode)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is a classified error of the given type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of err, or ErrorTypeUnknown if it is not classified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// NewError creates a new classified error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewErrorWithStatus creates a new classified error carrying an HTTP status.
func NewErrorWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Message: message}
}

// NewErrorWithCause creates a new classified error wrapping cause.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// FromStatus classifies an HTTP status returned by a provider.
func FromStatus(statusCode int, cause error) *Error {
	e := &Error{StatusCode: statusCode, Err: cause}
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Type, e.Message = ErrorTypeAuth, "authentication failed"
	case statusCode == http.StatusTooManyRequests:
		e.Type, e.Message = ErrorTypeRateLimit, "rate limit exceeded"
	case statusCode == http.StatusRequestTimeout || statusCode >= http.StatusInternalServerError:
		e.Type, e.Message = ErrorTypeTransient, fmt.Sprintf("server error %d", statusCode)
	case statusCode >= http.StatusBadRequest:
		e.Type, e.Message = ErrorTypeBadPrompt, fmt.Sprintf("request rejected with status %d", statusCode)
	default:
		e.Type, e.Message = ErrorTypeUnknown, fmt.Sprintf("unexpected status %d", statusCode)
	}
	return e
}

// Classify maps an arbitrary error onto a classified one using context state and
// message patterns. Errors that are already classified are returned unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeTransient, err, "request canceled")
	}

	lower := strings.ToLower(err.Error())
	switch {
	case containsAny(lower, "timeout", "connection", "network", "temporary", "eof", "reset"):
		return NewErrorWithCause(ErrorTypeTransient, err, "network or connection error")
	case containsAny(lower, "rate", "quota", "too many requests"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, "rate limiting detected")
	case containsAny(lower, "unauthorized", "api key", "permission denied"):
		return NewErrorWithCause(ErrorTypeAuth, err, "authentication error")
	case containsAny(lower, "invalid", "malformed", "too large", "not found"):
		return NewErrorWithCause(ErrorTypeBadPrompt, err, "prompt or request error")
	default:
		return NewErrorWithCause(ErrorTypeUnknown, err, "unclassified error")
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
