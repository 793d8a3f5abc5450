package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spiffcs/tanuki/internal/constants"
)

// RequestBuilder turns endpoint descriptors into HTTP requests.
type RequestBuilder struct {
	base           *url.URL
	apiPrefix      string
	userAgent      string
	acceptLanguage string
}

// NewRequestBuilder creates a builder for baseURL. An empty apiPrefix
// falls back to the default /api/v4.
func NewRequestBuilder(baseURL, apiPrefix string) (*RequestBuilder, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q", ErrInvalidURL, baseURL)
	}
	if apiPrefix == "" {
		apiPrefix = constants.DefaultAPIPrefix
	}
	return &RequestBuilder{
		base:           base,
		apiPrefix:      "/" + strings.Trim(apiPrefix, "/"),
		userAgent:      constants.UserAgent,
		acceptLanguage: constants.AcceptLanguage,
	}, nil
}

// BaseURL returns a copy of the configured base URL.
func (b *RequestBuilder) BaseURL() *url.URL {
	u := *b.base
	return &u
}

// BuildURL composes base path, API prefix (unless the endpoint is absolute)
// and endpoint path. Existing percent-encoding in the endpoint path is kept
// as-is so an encoded slash (%2F) stays encoded. Query items are appended in
// order.
func (b *RequestBuilder) BuildURL(ep Endpoint) (*url.URL, error) {
	if ep.IsAbsolutePath {
		if full, err := url.Parse(ep.Path); err == nil && full.Scheme != "" && full.Host != "" {
			return appendQuery(full, ep.Query), nil
		}
	}

	rawPath := ep.Path
	rawQuery := ""
	if i := strings.IndexByte(rawPath, '?'); i >= 0 {
		rawPath, rawQuery = rawPath[:i], rawPath[i+1:]
	}
	if !strings.HasPrefix(rawPath, "/") {
		rawPath = "/" + rawPath
	}

	prefix := strings.TrimSuffix(b.base.EscapedPath(), "/")
	if !ep.IsAbsolutePath {
		prefix += b.apiPrefix
	}
	rawPath = prefix + rawPath

	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	u := &url.URL{
		Scheme:   b.base.Scheme,
		User:     b.base.User,
		Host:     b.base.Host,
		Path:     path,
		RawPath:  rawPath,
		RawQuery: rawQuery,
	}
	return appendQuery(u, ep.Query), nil
}

// appendQuery adds items to u's query without reordering them.
func appendQuery(u *url.URL, items []QueryItem) *url.URL {
	if len(items) == 0 {
		return u
	}
	parts := make([]string, 0, len(items)+1)
	if u.RawQuery != "" {
		parts = append(parts, u.RawQuery)
	}
	for _, item := range items {
		parts = append(parts, url.QueryEscape(item.Name)+"="+url.QueryEscape(item.Value))
	}
	u.RawQuery = strings.Join(parts, "&")
	return u
}

// MakeRequest builds the HTTP request for u. Default headers are set first
// and endpoint headers last so they can override them. When the endpoint
// sets a timeout the returned request carries a deadline; the cancel func
// must be called once the response body has been consumed.
func (b *RequestBuilder) MakeRequest(ctx context.Context, u *url.URL, ep Endpoint) (*http.Request, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if ep.Options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, ep.Options.Timeout)
	}

	method := ep.Method
	if method == "" {
		method = http.MethodGet
	}

	var body *bytes.Reader
	if ep.Body != nil {
		body = bytes.NewReader(ep.Body)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept-Language", b.acceptLanguage)
	if cc := ep.Options.CachePolicy.cacheControl(); cc != "" {
		req.Header.Set("Cache-Control", cc)
	}
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}

	return req, cancel, nil
}
