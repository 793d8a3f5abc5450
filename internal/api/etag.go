package api

import "sync"

// ETagCache remembers the last ETag seen per request URL. It lives in
// memory only; a missing entry simply forces a full fetch.
type ETagCache struct {
	mu    sync.Mutex
	etags map[string]string
}

// NewETagCache creates an empty cache.
func NewETagCache() *ETagCache {
	return &ETagCache{etags: make(map[string]string)}
}

// ETag returns the stored ETag for the exact URL string.
func (c *ETagCache) ETag(rawURL string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	etag, ok := c.etags[rawURL]
	return etag, ok
}

// Store records etag for rawURL, replacing any previous value.
func (c *ETagCache) Store(etag, rawURL string) {
	if etag == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.etags[rawURL] = etag
}

// Clear drops every stored ETag.
func (c *ETagCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.etags)
}

// Len returns the number of stored ETags.
func (c *ETagCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.etags)
}
