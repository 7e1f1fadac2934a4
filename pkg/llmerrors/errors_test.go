package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{429, ErrorTypeRateLimit},
		{400, ErrorTypeBadPrompt},
		{404, ErrorTypeBadPrompt},
		{408, ErrorTypeTransient},
		{500, ErrorTypeTransient},
		{503, ErrorTypeTransient},
		{302, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, errors.New("upstream"))
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.status, err.StatusCode)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))

	assert.Equal(t, ErrorTypeTransient, Classify(context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorTypeTransient, Classify(fmt.Errorf("wrapped: %w", context.Canceled)).Type)
	assert.Equal(t, ErrorTypeTransient, Classify(errors.New("dial tcp: connection refused")).Type)
	assert.Equal(t, ErrorTypeRateLimit, Classify(errors.New("quota exhausted")).Type)
	assert.Equal(t, ErrorTypeAuth, Classify(errors.New("missing API key")).Type)
	assert.Equal(t, ErrorTypeBadPrompt, Classify(errors.New("model not found")).Type)
	assert.Equal(t, ErrorTypeUnknown, Classify(errors.New("something odd")).Type)

	pre := NewError(ErrorTypeEmptyResponse, "nothing")
	assert.Same(t, pre, Classify(fmt.Errorf("ctx: %w", pre)))
}

func TestIsAndTypeOf(t *testing.T) {
	err := fmt.Errorf("attempt failed: %w", NewErrorWithStatus(ErrorTypeRateLimit, 429, "slow down"))
	assert.True(t, Is(err, ErrorTypeRateLimit))
	assert.False(t, Is(err, ErrorTypeAuth))
	assert.Equal(t, ErrorTypeRateLimit, TypeOf(err))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorWithCause(ErrorTypeTransient, cause, "server error")
	assert.Equal(t, "LLM error (transient): server error: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "LLM error (auth): status 401", (&Error{Type: ErrorTypeAuth, StatusCode: 401}).Error())
}
