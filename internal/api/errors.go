package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidURL is returned when an endpoint cannot be composed into a URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnauthorized is returned for 401 responses and when no valid or
	// refreshable token exists.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotModified is returned for 304 responses to conditional requests.
	// Callers reuse the body they already hold.
	ErrNotModified = errors.New("not modified")

	// ErrRateLimited is returned when the API rate limit has been exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// TransportError wraps DNS, connection and timeout failures.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx response that is neither 401 nor 304.
type ServerError struct {
	StatusCode int
	Body       []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d)", e.StatusCode)
}

// DecodingError means the response body did not match the expected shape.
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding error: %v", e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// TrustError is a certificate validation failure during the TLS handshake.
type TrustError struct {
	Err error
}

func (e *TrustError) Error() string {
	return fmt.Sprintf("trust evaluation failed: %v", e.Err)
}

func (e *TrustError) Unwrap() error {
	return e.Err
}

// Retryable reports whether err may succeed on another attempt: transport
// failures and 5xx responses.
func Retryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.StatusCode >= 500 && serverErr.StatusCode <= 599
	}
	return false
}

// IsStatus reports whether err is a ServerError with the given status code.
func IsStatus(err error, status int) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.StatusCode == status
}

// UserMessage renders err as the short human-readable message shown to users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		serverErr    *ServerError
		decodingErr  *DecodingError
		transportErr *TransportError
		trustErr     *TrustError
	)
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrNotModified):
		return "Not modified"
	case errors.Is(err, ErrInvalidURL):
		return "Invalid URL"
	case errors.Is(err, ErrRateLimited):
		return "Rate limited"
	case errors.As(err, &serverErr):
		if serverErr.StatusCode == http.StatusNotFound {
			return "Not found (404)"
		}
		return fmt.Sprintf("Server error (%d)", serverErr.StatusCode)
	case errors.As(err, &decodingErr):
		return fmt.Sprintf("Decoding error: %v", decodingErr.Err)
	case errors.As(err, &trustErr):
		return "Certificate trust evaluation failed"
	case errors.As(err, &transportErr):
		return fmt.Sprintf("Network error: %v", transportErr.Err)
	default:
		return err.Error()
	}
}
