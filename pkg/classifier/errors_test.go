package classifier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"rate limit", errors.New("error, status code: 429, message: Too Many Requests"), ErrorTypeRateLimit, true},
		{"server error", errors.New("error, status code: 503, message: Service Unavailable"), ErrorTypeServer, true},
		{"bad gateway", errors.New("502 Bad Gateway"), ErrorTypeServer, true},
		{"auth", errors.New("error, status code: 401, message: invalid api key"), ErrorTypeAuth, false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:8000: connect: connection refused"), ErrorTypeEndpoint, true},
		{"timeout string", errors.New("net/http: request canceled (Client.Timeout exceeded)"), ErrorTypeEndpoint, true},
		{"deadline", context.DeadlineExceeded, ErrorTypeEndpoint, true},
		{"canceled", context.Canceled, ErrorTypeEndpoint, false},
		{"content filter", errors.New("rejected by content policy"), ErrorTypeInput, false},
		{"unrecognized", errors.New("something odd"), ErrorTypeUnknown, false},
		{"unrecognized transient", errors.New("lookup api: temporary failure in name resolution"), ErrorTypeUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cerr := ClassifyError(tt.err)
			assert.Equal(t, tt.wantType, cerr.Type)
			assert.Equal(t, tt.retryable, cerr.Retryable)
		})
	}
}

func TestClassifyError_PassesThroughStructured(t *testing.T) {
	orig := NewError(ErrorTypeInput, "empty text", false, nil)
	wrapped := fmt.Errorf("classify row: %w", orig)
	assert.Same(t, orig, ClassifyError(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(NewError(ErrorTypeServer, "boom", true, nil)))
	assert.False(t, IsRetryable(NewError(ErrorTypeResponse, "garbage", false, nil)))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(errors.New("mystery")))
}

func TestErrorMessage(t *testing.T) {
	e := NewError(ErrorTypeRateLimit, "rate limited", true, errors.New("429"))
	e.StatusCode = 429
	require.Contains(t, e.Error(), "rate_limit")
	require.Contains(t, e.Error(), "HTTP 429")
}
