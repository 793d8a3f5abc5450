// Package api implements the HTTP pipeline for the upstream REST API:
// endpoint descriptors, request building, conditional requests, retries,
// pagination metadata and typed decoding.
package api

import (
	"net/http"
	"strconv"
	"time"
)

// CachePolicy selects how intermediaries may answer a request.
type CachePolicy int

const (
	// CachePolicyDefault leaves caching to the protocol.
	CachePolicyDefault CachePolicy = iota
	// CachePolicyReload asks intermediaries to revalidate.
	CachePolicyReload
	// CachePolicyNoStore forbids storing the response.
	CachePolicyNoStore
	// CachePolicyPreferCache accepts a stale intermediary copy.
	CachePolicyPreferCache
)

// cacheControl returns the Cache-Control header value for the policy.
func (p CachePolicy) cacheControl() string {
	switch p {
	case CachePolicyReload:
		return "no-cache"
	case CachePolicyNoStore:
		return "no-store"
	case CachePolicyPreferCache:
		return "max-stale"
	default:
		return ""
	}
}

// RequestOptions are the per-endpoint transport options.
type RequestOptions struct {
	CachePolicy         CachePolicy
	Timeout             time.Duration
	UseETag             bool
	AttachAuthorization bool
	// AuthorizationOptional sends the request without a header when the
	// authorizer reports ErrUnauthorized, so public resources stay readable
	// while signed out.
	AuthorizationOptional bool
}

// QueryItem is one ordered query parameter.
type QueryItem struct {
	Name  string
	Value string
}

// Endpoint describes one API call. It is built per call site and not
// mutated afterwards.
type Endpoint struct {
	Path           string
	Method         string
	Query          []QueryItem
	Headers        map[string]string
	Body           []byte
	IsAbsolutePath bool
	Options        RequestOptions
}

// Get returns an authenticated GET endpoint for path.
func Get(path string, query ...QueryItem) Endpoint {
	return Endpoint{
		Path:    path,
		Method:  http.MethodGet,
		Query:   query,
		Options: RequestOptions{AttachAuthorization: true},
	}
}

// Post returns an authenticated POST endpoint carrying a JSON body.
func Post(path string, body []byte) Endpoint {
	return Endpoint{
		Path:    path,
		Method:  http.MethodPost,
		Body:    body,
		Headers: map[string]string{"Content-Type": "application/json"},
		Options: RequestOptions{AttachAuthorization: true},
	}
}

// Q builds a query item.
func Q(name, value string) QueryItem {
	return QueryItem{Name: name, Value: value}
}

// QInt builds an integer query item.
func QInt(name string, value int) QueryItem {
	return QueryItem{Name: name, Value: strconv.Itoa(value)}
}
