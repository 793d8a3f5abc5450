package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", &TransportError{Err: errors.New("dial tcp: refused")}, true},
		{"wrapped transport", fmt.Errorf("list: %w", &TransportError{Err: errors.New("eof")}), true},
		{"503", &ServerError{StatusCode: 503}, true},
		{"599", &ServerError{StatusCode: 599}, true},
		{"404", &ServerError{StatusCode: 404}, false},
		{"decoding", &DecodingError{Err: errors.New("bad")}, false},
		{"unauthorized", ErrUnauthorized, false},
		{"not modified", ErrNotModified, false},
		{"trust", &TrustError{Err: errors.New("x509")}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ServerError{StatusCode: 503}, "Server error (503)"},
		{&ServerError{StatusCode: 404}, "Not found (404)"},
		{fmt.Errorf("wrapped: %w", ErrUnauthorized), "Unauthorized"},
		{&DecodingError{Err: errors.New("unexpected end of JSON input")}, "Decoding error: unexpected end of JSON input"},
		{ErrNotModified, "Not modified"},
		{nil, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err))
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{
		"2025-01-02T03:04:05.123Z",
		"2025-01-02T03:04:05Z",
		"2025-01-02T03:04:05.123+01:00",
		"2025-01-02T03:04:05+0100",
	} {
		_, err := ParseTime(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseTime("2025-01-02")
	assert.Error(t, err)
}
