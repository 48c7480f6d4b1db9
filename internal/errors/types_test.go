package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorError(t *testing.T) {
	err := New(ErrCodeParse, "bad input")
	assert.Equal(t, "PARSE: bad input", err.Error())

	wrapped := Wrap(errors.New("root cause"), ErrCodeStore, "save failed")
	assert.Equal(t, "STORE: save failed: root cause", wrapped.Error())
	assert.Equal(t, "root cause", errors.Unwrap(wrapped).Error())
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeParse, "bad input").WithContext("reason", "unknown_kind")
	assert.Equal(t, "unknown_kind", err.Context["reason"])
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(New(ErrCodeParse, "x")))
	assert.True(t, IsRetryable(WrapRetryable(errors.New("busy"), ErrCodeStore, "x")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeAction, GetCode(New(ErrCodeAction, "x")))
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("plain")))
}

func TestGetUserMessage(t *testing.T) {
	withMsg := New(ErrCodeAction, "send failed").WithUserMessage("Failed to send the message.")
	assert.Equal(t, "Failed to send the message.", GetUserMessage(withMsg))

	// Authorization always collapses to the generic denial, even when a
	// user message was set.
	denied := New(ErrCodeAuthorization, "group not privileged").WithUserMessage("group 100 not allowed")
	assert.Equal(t, "You are not authorized to use this command.", GetUserMessage(denied))

	assert.Equal(t, "An internal error occurred", GetUserMessage(New(ErrCodeStore, "x")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(errors.New("plain")))
}
