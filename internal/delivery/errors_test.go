package delivery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSentinelMapping(t *testing.T) {
	tests := []struct {
		typ      ErrorType
		sentinel error
	}{
		{ErrorTypeConfiguration, ErrConfiguration},
		{ErrorTypeProtocol, ErrProtocol},
		{ErrorTypeTransport, ErrTransport},
		{ErrorTypeTimeout, ErrTimeout},
		{ErrorTypeUnresolved, ErrUnresolvedPlugin},
	}
	for _, tc := range tests {
		err := NewError(tc.typ, "send", "hook", errors.New("boom"))
		assert.ErrorIs(t, err, tc.sentinel, string(tc.typ))
	}
}

func TestErrorRetryable(t *testing.T) {
	assert.True(t, NewError(ErrorTypeTransport, "send", "", nil).Retryable())
	assert.True(t, NewError(ErrorTypeTimeout, "send", "", nil).Retryable())
	assert.False(t, NewError(ErrorTypeConfiguration, "validate_config", "", nil).Retryable())
	assert.False(t, NewError(ErrorTypeProtocol, "render_template", "", nil).Retryable())
	assert.False(t, NewError(ErrorTypeUnresolved, "resolve_plugin", "", nil).Retryable())
}

func TestErrorMessage(t *testing.T) {
	err := NewError(ErrorTypeTransport, "send", "ops-webhook", errors.New("connection refused"))
	assert.Equal(t, "send failed for ops-webhook: connection refused", err.Error())

	err = NewError(ErrorTypeTransport, "send", "", errors.New("connection refused"))
	assert.Equal(t, "send failed: connection refused", err.Error())
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NewError(ErrorTypeTransport, "send", "", inner)
	assert.ErrorIs(t, err, inner)
}

func TestFailureResult(t *testing.T) {
	res := Failure(NewError(ErrorTypeTimeout, "send", "hook", errors.New("deadline exceeded")), 0)
	assert.False(t, res.Success)
	assert.True(t, res.TimedOut)
	assert.True(t, res.Retryable)
	assert.Contains(t, res.ErrorMessage, "deadline exceeded")

	res = Failure(NewError(ErrorTypeConfiguration, "validate_config", "hook", errors.New("missing url")), 0)
	assert.False(t, res.TimedOut)
	assert.False(t, res.Retryable)
}
