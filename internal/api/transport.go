package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/spiffcs/tanuki/internal/constants"
	"github.com/spiffcs/tanuki/internal/log"
)

// rateLimitTransport wraps an http.RoundTripper to track API rate limits.
type rateLimitTransport struct {
	base  http.RoundTripper
	state *RateLimitState
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Check if we're already rate limited before making the request
	if t.state.IsLimited() {
		return nil, ErrRateLimited
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	remaining, limit, resetAt := parseRateLimitHeaders(resp.Header)
	if remaining >= 0 && limit > 0 {
		t.state.Update(remaining, limit, resetAt)
	}

	if remaining <= constants.RateLimitLowWatermark && remaining > 0 {
		log.Debug("rate limit low", "remaining", remaining, "resets_at", resetAt.Format(time.RFC3339))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		t.state.SetLimited(true, resetAt)
	}

	return resp, nil
}

// parseRateLimitHeaders extracts rate limit info from response headers,
// accepting both the RateLimit-* and X-RateLimit-* spellings.
func parseRateLimitHeaders(h http.Header) (remaining, limit int, resetAt time.Time) {
	remaining = -1
	limit = -1

	if v := firstHeader(h, "RateLimit-Remaining", "X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			remaining = n
		}
	}

	if v := firstHeader(h, "RateLimit-Limit", "X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	if v := firstHeader(h, "RateLimit-Reset", "X-RateLimit-Reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			resetAt = time.Unix(n, 0)
		}
	}

	return remaining, limit, resetAt
}

func firstHeader(h http.Header, names ...string) string {
	for _, name := range names {
		if v := headerValue(h, name); v != "" {
			return v
		}
	}
	return ""
}
