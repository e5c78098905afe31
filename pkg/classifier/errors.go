package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crowdpulse/feedback-engine/pkg/retry"
)

// ErrorType categorizes a classification failure.
type ErrorType string

const (
	ErrorTypeAuth      ErrorType = "auth"      // bad or missing API key
	ErrorTypeEndpoint  ErrorType = "endpoint"  // connection, DNS, timeout
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeServer    ErrorType = "server"    // 5xx-equivalent from provider
	ErrorTypeResponse  ErrorType = "response"  // provider answered but result unusable
	ErrorTypeInput     ErrorType = "input"     // row text the provider rejects
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error is a structured classification error. Retryable distinguishes
// transient failures (timeouts, rate limits, 5xx) from permanent ones
// (auth, malformed input, unusable responses).
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured classification error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// IsRetryable reports whether err represents a transient classification
// failure worth redelivering. nil and unrecognized errors are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Retryable
	}
	// Deadline expiry from the per-call timeout is transient.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// ClassifyError categorizes a raw provider error into a structured Error.
// Already-structured errors pass through unchanged.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(ErrorTypeEndpoint, "request canceled", false, err)
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	switch {
	case strings.Contains(errStr, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key"):
		e := NewError(ErrorTypeAuth, "authentication failed", false, err)
		e.StatusCode = statusCode
		return e

	case strings.Contains(errStr, "429") || strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests"):
		e := NewError(ErrorTypeRateLimit, "rate limited", true, err)
		e.StatusCode = statusCode
		return e

	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(lower, "service unavailable") || strings.Contains(lower, "overloaded"):
		e := NewError(ErrorTypeServer, "provider error", true, err)
		e.StatusCode = statusCode
		return e

	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "broken pipe") || strings.Contains(lower, "connection reset"):
		e := NewError(ErrorTypeEndpoint, "connection failed", true, err)
		e.StatusCode = statusCode
		return e

	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		e := NewError(ErrorTypeEndpoint, "request timeout", true, err)
		e.StatusCode = statusCode
		return e

	case strings.Contains(lower, "content policy") || strings.Contains(lower, "content filter"):
		return NewError(ErrorTypeInput, "content rejected", false, err)
	}

	e := NewError(ErrorTypeUnknown, "classification failed", retry.IsRetryable(err), err)
	e.StatusCode = statusCode
	return e
}
