package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCode2FAAlreadyEnabled, http.StatusBadRequest},
		{ErrCode2FANotEnabled, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{ErrCode2FAInvalid, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeUserNotFound, http.StatusNotFound},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCode2FASecretGeneration, http.StatusInternalServerError},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	sentinel := New(ErrCode2FANotEnabled, "not enabled")
	wrapped := fmt.Errorf("disable: %w", Wrap(errors.New("boom"), ErrCode2FANotEnabled, "other message"))

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, New(ErrCode2FAInvalid, "not enabled")))
	assert.False(t, errors.Is(errors.New("plain"), sentinel))
	assert.True(t, IsCode(wrapped, ErrCode2FANotEnabled))
	assert.Equal(t, ErrCode2FANotEnabled, GetCode(wrapped))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"coded error", New(ErrCodeUserNotFound, "user not found"), "user not found"},
		{"wrapped cause hidden", Wrap(errors.New("pq: connection refused"), ErrCode2FAInvalid, "invalid code"), "invalid code"},
		{"internal hidden", InternalWrap(errors.New("pq: connection refused"), "failed to load user"), "internal server error"},
		{"plain error hidden", errors.New("secret detail"), "internal server error"},
		{"formatted", NotFound("route", "/x"), "route not found: /x"},
		{"invalid input", InvalidInput("token", "must be 6 digits"), "invalid token: must be 6 digits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicMessage(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, ErrCodeInternal, "failed")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[INTERNAL_ERROR] failed: boom", err.Error())
	assert.Equal(t, "[UNAUTHORIZED] nope", Unauthorized("nope").Error())
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "failed"))
}
