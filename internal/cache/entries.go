package cache

import (
	"strconv"
	"time"

	"github.com/spiffcs/tanuki/internal/constants"
)

// Version should be incremented when the stored format changes so old
// entries are treated as misses.
const Version = 1

// Item is anything the cache can store: it needs a stable identity.
type Item interface {
	Key() int64
}

// CachedPage is one page of a feed. Only item ids are stored, in order; the
// items themselves live in the item table.
type CachedPage struct {
	Key      string    `json:"key"`
	CachedAt time.Time `json:"cachedAt"`
	ItemIDs  []int64   `json:"itemIds"`
	NextPage *int      `json:"nextPage,omitempty"`
	Version  int       `json:"version"`
}

// itemEntry wraps a stored item with version metadata.
type itemEntry[T Item] struct {
	Item     T         `json:"item"`
	CachedAt time.Time `json:"cachedAt"`
	Version  int       `json:"version"`
}

// PageResult is a cached page reconstructed from the item table.
type PageResult[T Item] struct {
	Items    []T
	NextPage *int
	CachedAt time.Time
	// Fresh is true when the page is younger than the TTL it was read with.
	Fresh bool
}

// Stats contains cache statistics.
type Stats struct {
	PageTotal int
	PageFresh int
	ItemTotal int
	// MemoryItems is the number of items held by the in-process LRU.
	MemoryItems int
}

// PageKey builds the storage key for page of feed.
func PageKey(feed string, page int) string {
	return feed + constants.PageKeySeparator + strconv.Itoa(page)
}
