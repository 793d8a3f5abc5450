package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/constants"
)

// OAuth endpoint paths, relative to the instance base URL.
const (
	AuthorizePath = "/oauth/authorize"
	TokenPath     = "/oauth/token"
)

// OAuthClient performs the authorization-code and refresh-token exchanges.
// It uses its own HTTP client, so requests carry no Authorization header
// and bypass the API client's ETag handling.
type OAuthClient struct {
	authURL    string
	tokenURL   string
	httpClient *http.Client
	now        func() time.Time
}

// OAuthOption configures an OAuthClient.
type OAuthOption func(*OAuthClient)

// WithOAuthHTTPClient sets the HTTP client used for token exchanges.
func WithOAuthHTTPClient(hc *http.Client) OAuthOption {
	return func(c *OAuthClient) {
		c.httpClient = hc
	}
}

// WithOAuthClock sets the clock used to stamp tokens the server did not date.
func WithOAuthClock(now func() time.Time) OAuthOption {
	return func(c *OAuthClient) {
		c.now = now
	}
}

// NewOAuthClient creates a client for the OAuth endpoints of the instance at baseURL.
func NewOAuthClient(baseURL string, opts ...OAuthOption) (*OAuthClient, error) {
	builder, err := api.NewRequestBuilder(baseURL, "")
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(builder.BaseURL().String(), "/")

	c := &OAuthClient{
		authURL:    base + AuthorizePath,
		tokenURL:   base + TokenPath,
		httpClient: &http.Client{Timeout: constants.OAuthTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *OAuthClient) config(clientID, redirectURI string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.authURL,
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *OAuthClient) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// AuthorizationURL builds the authorize redirect carrying the PKCE challenge.
func (c *OAuthClient) AuthorizationURL(clientID, redirectURI string, scopes []string, codeChallenge, state string) string {
	return c.config(clientID, redirectURI, scopes).AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// ExchangeCode trades an authorization code and its verifier for a token.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code, redirectURI, clientID, codeVerifier string) (Token, error) {
	tok, err := c.config(clientID, redirectURI, nil).Exchange(c.context(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return Token{}, classifyOAuthError(ctx, err)
	}
	return c.fromOAuth2(tok), nil
}

// RefreshToken exchanges a refresh token for a new token. client_id is only
// sent when clientID is not empty. When the server does not rotate the
// refresh token the old one is kept.
func (c *OAuthClient) RefreshToken(ctx context.Context, refreshToken, clientID string) (Token, error) {
	src := c.config(clientID, "", nil).TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, classifyOAuthError(ctx, err)
	}
	out := c.fromOAuth2(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func (c *OAuthClient) fromOAuth2(tok *oauth2.Token) Token {
	out := Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}

	if v, ok := extraFloat(tok, "expires_in"); ok {
		n := int64(v)
		out.ExpiresIn = &n
	} else if tok.ExpiresIn > 0 {
		n := tok.ExpiresIn
		out.ExpiresIn = &n
	}

	if v, ok := extraFloat(tok, "created_at"); ok {
		out.CreatedAt = &v
	} else if out.ExpiresIn != nil {
		// Without an issue time the expiry is relative to receipt.
		v := float64(c.now().Unix())
		out.CreatedAt = &v
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	return out
}

// extraFloat reads a numeric field from the raw token response, which may
// have arrived as a JSON number or a form-encoded string.
func extraFloat(tok *oauth2.Token, key string) (float64, bool) {
	switch v := tok.Extra(key).(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// classifyOAuthError maps oauth2 failures onto the API error taxonomy.
func classifyOAuthError(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if status >= 200 && status <= 299 {
			return &api.DecodingError{Err: err}
		}
		return &api.ServerError{StatusCode: status, Body: retrieveErr.Body}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &api.TransportError{Err: fmt.Errorf("token endpoint: %w", err)}
	}
	return &api.DecodingError{Err: err}
}
