// Package constants provides a centralized location for all configuration
// values and magic numbers used throughout the tanuki application.
package constants

import "time"

// API defaults
const (
	// DefaultAPIPrefix is prepended to every relative endpoint path.
	DefaultAPIPrefix = "/api/v4"

	// DefaultPerPage is the page size used when a request does not set one
	// and when a paginated response carries only partial page metadata.
	DefaultPerPage = 20

	// UserAgent is sent on every API request.
	UserAgent = "tanuki/1.0 (+https://github.com/spiffcs/tanuki)"

	// AcceptLanguage is sent on every API request.
	AcceptLanguage = "en-US,en;q=0.9"
)

// HTTP retry constants
const (
	// MaxAttempts is the total number of attempts for one request,
	// including the first.
	MaxAttempts = 3

	// RetryBackoffStep is multiplied by the attempt number that just
	// failed to produce the delay before the next one (150ms, 300ms).
	RetryBackoffStep = 150 * time.Millisecond

	// DefaultRequestTimeout applies when an endpoint does not set its own.
	DefaultRequestTimeout = 30 * time.Second

	// OAuthTimeout bounds the token endpoint exchanges.
	OAuthTimeout = 30 * time.Second
)

// Token lifecycle constants
const (
	// TokenExpiryMargin is subtracted from a token's expiry before it is
	// compared to the current time.
	TokenExpiryMargin = 30 * time.Second

	// MillisecondEpochThreshold marks creation timestamps that were issued
	// in milliseconds instead of seconds.
	MillisecondEpochThreshold = 1e12
)

// Cache TTL constants
const (
	// PageCacheTTL is how long a cached page of a feed is considered fresh.
	PageCacheTTL = 5 * time.Minute

	// ItemCacheTTL bounds how long decoded items stay in the in-process LRU.
	ItemCacheTTL = 10 * time.Minute

	// ItemCacheSize is the maximum number of decoded items kept in memory.
	ItemCacheSize = 2048
)

// Rate limiting constants
const (
	// RateLimitLowWatermark is the threshold below which rate limit
	// warnings are logged.
	RateLimitLowWatermark = 100
)

// Cache key constants
const (
	// NoSearchSentinel stands in for an empty search term in feed keys.
	NoSearchSentinel = "__none__"

	// PageKeySeparator joins a feed key and its page number.
	PageKeySeparator = "#p:"
)
