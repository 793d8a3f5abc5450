package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/spiffcs/tanuki/internal/constants"
	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/metrics"
)

// Authorizer supplies the Authorization header for authenticated requests.
type Authorizer interface {
	AuthorizationHeader(ctx context.Context) (string, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client sends endpoint descriptors to the API. It attaches authorization
// and conditional-request headers, retries transient failures and decodes
// responses.
type Client struct {
	builder     *RequestBuilder
	httpClient  *http.Client
	etags       *ETagCache
	auth        Authorizer
	limiter     *rate.Limiter
	rateLimits  *RateLimitState
	sleep       Sleeper
	maxAttempts int
	backoffStep time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// with rate limit tracking.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAuthorizer sets the source of Authorization headers.
func WithAuthorizer(a Authorizer) Option {
	return func(c *Client) {
		c.auth = a
	}
}

// WithETagCache shares an ETag cache between clients.
func WithETagCache(e *ETagCache) Option {
	return func(c *Client) {
		c.etags = e
	}
}

// WithRateLimit throttles outgoing attempts to rps requests per second.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithSleeper replaces the wait used between retry attempts.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// WithRetryPolicy sets the total attempt budget and the linear backoff step.
func WithRetryPolicy(maxAttempts int, step time.Duration) Option {
	return func(c *Client) {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		c.maxAttempts = maxAttempts
		c.backoffStep = step
	}
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, apiPrefix string, opts ...Option) (*Client, error) {
	builder, err := NewRequestBuilder(baseURL, apiPrefix)
	if err != nil {
		return nil, err
	}

	c := &Client{
		builder:     builder,
		httpClient:  &http.Client{Timeout: constants.DefaultRequestTimeout},
		etags:       NewETagCache(),
		rateLimits:  &RateLimitState{},
		sleep:       sleepContext,
		maxAttempts: constants.MaxAttempts,
		backoffStep: constants.RetryBackoffStep,
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *c.httpClient
	wrapped.Transport = &rateLimitTransport{base: base, state: c.rateLimits}
	c.httpClient = &wrapped

	return c, nil
}

// Builder returns the request builder.
func (c *Client) Builder() *RequestBuilder {
	return c.builder
}

// ETags returns the client's ETag cache.
func (c *Client) ETags() *ETagCache {
	return c.etags
}

// RateLimits returns the last observed rate limit status.
func (c *Client) RateLimits() RateLimitStatus {
	return c.rateLimits.Status()
}

// Response is a successful (2xx) response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do runs the full pipeline for ep and returns the raw successful response.
// Non-2xx outcomes are returned as typed errors.
func (c *Client) Do(ctx context.Context, ep Endpoint) (*Response, error) {
	u, err := c.builder.BuildURL(ep)
	if err != nil {
		return nil, err
	}

	var resp *Response
	err = c.retry(ctx, func(attempt int) error {
		r, err := c.attempt(ctx, u, ep, attempt)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, u *url.URL, ep Endpoint, attempt int) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, cancel, err := c.builder.MakeRequest(ctx, u, ep)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if ep.Options.AttachAuthorization {
		header, err := c.authorization(ctx, ep.Options.AuthorizationOptional)
		if err != nil {
			return nil, err
		}
		if header != "" {
			req.Header.Set("Authorization", header)
		}
	}

	key := u.String()
	if ep.Options.UseETag {
		if etag, ok := c.etags.ETag(key); ok {
			req.Header.Set("If-None-Match", etag)
		}
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	metrics.HTTPDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HTTPAttempts.WithLabelValues(req.Method, metrics.StatusClass(0)).Inc()
		log.Debug("api request failed", "method", req.Method, "url", key, "attempt", attempt, "error", err)
		return nil, classifyTransportError(ctx, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	status := httpResp.StatusCode
	metrics.HTTPAttempts.WithLabelValues(req.Method, metrics.StatusClass(status)).Inc()
	log.Debug("api request", "method", req.Method, "url", key, "status", status, "attempt", attempt)

	switch {
	case status >= 200 && status <= 299:
		if ep.Options.UseETag {
			if etag := etagHeader(httpResp.Header); etag != "" {
				c.etags.Store(etag, key)
			}
		}
		return &Response{StatusCode: status, Header: httpResp.Header, Body: body}, nil
	case status == http.StatusNotModified:
		metrics.NotModified.Inc()
		return nil, ErrNotModified
	case status == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, &ServerError{StatusCode: status, Body: body}
	}
}

// etagHeader reads the ETag response header under either spelling.
// authorization returns the Authorization header value. When optional, a
// missing or unusable token yields an empty header instead of an error.
func (c *Client) authorization(ctx context.Context, optional bool) (string, error) {
	if c.auth == nil {
		if optional {
			return "", nil
		}
		return "", ErrUnauthorized
	}
	header, err := c.auth.AuthorizationHeader(ctx)
	if err != nil {
		if optional && errors.Is(err, ErrUnauthorized) {
			log.Debug("sending request without authorization", "reason", err)
			return "", nil
		}
		return "", err
	}
	return header, nil
}

func etagHeader(h http.Header) string {
	if v := h.Get("ETag"); v != "" {
		return v
	}
	if vs := h["ETag"]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// classifyTransportError maps a failed round trip onto the error taxonomy.
// A cancelled caller context is returned as-is so it is never retried.
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, ErrRateLimited) {
		return ErrRateLimited
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var (
		verifyErr    *tls.CertificateVerificationError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	if errors.As(err, &verifyErr) || errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) || errors.As(err, &invalidErr) {
		return &TrustError{Err: err}
	}

	return &TransportError{Err: err}
}

// Send fetches a single object and decodes it into T. When T is []byte the
// body is returned untouched.
func Send[T any](ctx context.Context, c *Client, ep Endpoint) (T, error) {
	resp, err := c.Do(ctx, ep)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](resp.Body)
}

// Paginated is a decoded list response with its pagination metadata.
// PageInfo is nil when the response carried no pagination headers.
type Paginated[T any] struct {
	Items    []T
	PageInfo *PageInfo
}

// NextPage returns the next page pointer, if any.
func (p Paginated[T]) NextPage() *int {
	if p.PageInfo == nil {
		return nil
	}
	return p.PageInfo.NextPage
}

// SendPaginated fetches a list and attaches the parsed pagination metadata.
func SendPaginated[T any](ctx context.Context, c *Client, ep Endpoint) (Paginated[T], error) {
	resp, err := c.Do(ctx, ep)
	if err != nil {
		return Paginated[T]{}, err
	}
	items, err := decode[[]T](resp.Body)
	if err != nil {
		return Paginated[T]{}, err
	}
	return Paginated[T]{Items: items, PageInfo: ParsePageInfo(resp.Header)}, nil
}
