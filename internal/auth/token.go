// Package auth manages the OAuth credential: PKCE generation, the two token
// endpoint exchanges, durable storage and the in-memory token with its
// single-flight refresh.
package auth

import (
	"math"
	"strings"
	"time"

	"github.com/spiffcs/tanuki/internal/constants"
)

// Token is an OAuth access token as issued by the token endpoint.
// A token without ExpiresIn or CreatedAt never expires.
type Token struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    *int64   `json:"expires_in,omitempty"`
	CreatedAt    *float64 `json:"created_at,omitempty"`
	Scope        string   `json:"scope,omitempty"`
}

// CreatedAtTime returns the issue time. Issuers that report milliseconds
// instead of seconds are detected by magnitude.
func (t Token) CreatedAtTime() (time.Time, bool) {
	if t.CreatedAt == nil {
		return time.Time{}, false
	}
	secs := *t.CreatedAt
	if secs > constants.MillisecondEpochThreshold {
		secs /= 1000
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))), true
}

// ExpiresAt returns the issuer's expiry, without the safety margin.
func (t Token) ExpiresAt() (time.Time, bool) {
	if t.ExpiresIn == nil {
		return time.Time{}, false
	}
	created, ok := t.CreatedAtTime()
	if !ok {
		return time.Time{}, false
	}
	return created.Add(time.Duration(*t.ExpiresIn) * time.Second), true
}

// Expired reports whether the token is within the safety margin of its
// expiry at now. A token exactly at the margin is expired.
func (t Token) Expired(now time.Time) bool {
	expiresAt, ok := t.ExpiresAt()
	if !ok {
		return false
	}
	return !now.Before(expiresAt.Add(-constants.TokenExpiryMargin))
}

// Refreshable reports whether the token carries a refresh token.
func (t Token) Refreshable() bool {
	return t.RefreshToken != ""
}

// AuthorizationHeader renders the value of the Authorization header.
func (t Token) AuthorizationHeader() string {
	tokenType := t.TokenType
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return tokenType + " " + t.AccessToken
}
