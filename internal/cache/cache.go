// Package cache provides the page-oriented on-disk cache behind the
// repositories. Pages store ordered item ids; items are deduplicated in a
// separate table keyed by id and fronted by an in-process LRU.
package cache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	bolt "go.etcd.io/bbolt"

	"github.com/spiffcs/tanuki/internal/constants"
	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/metrics"
	"github.com/spiffcs/tanuki/internal/model"
)

var (
	pagesBucket = []byte("pages")
	itemsBucket = []byte("items")
)

// Cacher defines the interface for caching operations.
// This interface enables mocking the cache in unit tests.
type Cacher[T Item] interface {
	// ReadPage returns the cached page, or nil when there is none.
	ReadPage(feed string, page int, ttl time.Duration) (*PageResult[T], error)
	// SavePage upserts items and replaces the page with their ids.
	SavePage(feed string, page int, items []T, nextPage *int) error

	Item(id int64) (T, bool, error)
	SaveItem(item T) error

	Clear() error
	Stats(ttl time.Duration) (*Stats, error)
}

// Ensure Store implements Cacher.
var _ Cacher[model.Project] = (*Store[model.Project])(nil)

// Store is a bbolt-backed Cacher.
type Store[T Item] struct {
	db    *bolt.DB
	items *expirable.LRU[int64, T]
	now   func() time.Time
}

// Option configures a Store.
type Option func(*options)

type options struct {
	now     func() time.Time
	lruSize int
	lruTTL  time.Duration
}

// WithClock sets the clock used to stamp and age pages.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithMemoryCache sizes the in-process item LRU.
func WithMemoryCache(size int, ttl time.Duration) Option {
	return func(o *options) {
		o.lruSize = size
		o.lruTTL = ttl
	}
}

// Open opens (creating if needed) the cache database at path.
func Open[T Item](path string, opts ...Option) (*Store[T], error) {
	o := options{
		now:     time.Now,
		lruSize: constants.ItemCacheSize,
		lruTTL:  constants.ItemCacheTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if err := db.Update(createBuckets); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store[T]{
		db:    db,
		items: expirable.NewLRU[int64, T](o.lruSize, nil, o.lruTTL),
		now:   o.now,
	}, nil
}

func createBuckets(tx *bolt.Tx) error {
	for _, bucket := range [][]byte{pagesBucket, itemsBucket} {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database.
func (s *Store[T]) Close() error {
	return s.db.Close()
}

func itemKey(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// ReadPage reconstructs a cached page. Ids whose item is no longer stored
// are skipped, preserving the order of the rest.
func (s *Store[T]) ReadPage(feed string, page int, ttl time.Duration) (*PageResult[T], error) {
	key := PageKey(feed, page)

	var cp CachedPage
	var items []T
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(pagesBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &cp); err != nil {
			log.Debug("cache page unreadable", "key", key, "error", err)
			return nil
		}
		if cp.Version != Version {
			log.Debug("cache version mismatch", "cached", cp.Version, "current", Version, "key", key)
			return nil
		}
		found = true

		b := tx.Bucket(itemsBucket)
		items = make([]T, 0, len(cp.ItemIDs))
		for _, id := range cp.ItemIDs {
			if item, ok := s.items.Get(id); ok {
				items = append(items, item)
				continue
			}
			item, ok, err := s.decodeItem(b.Get(itemKey(id)))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			s.items.Add(id, item)
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", key, err)
	}

	if !found {
		metrics.CacheLookups.WithLabelValues(metrics.ResultMiss).Inc()
		log.Debug("cache miss", "key", key)
		return nil, nil
	}

	fresh := s.now().Sub(cp.CachedAt) <= ttl
	result := metrics.ResultStale
	if fresh {
		result = metrics.ResultFresh
	}
	metrics.CacheLookups.WithLabelValues(result).Inc()
	log.Debug("cache hit", "key", key, "items", len(items), "fresh", fresh)

	return &PageResult[T]{
		Items:    items,
		NextPage: cp.NextPage,
		CachedAt: cp.CachedAt,
		Fresh:    fresh,
	}, nil
}

func (s *Store[T]) decodeItem(data []byte) (T, bool, error) {
	var zero T
	if data == nil {
		return zero, false, nil
	}
	var entry itemEntry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		return zero, false, fmt.Errorf("decode item: %w", err)
	}
	if entry.Version != Version {
		return zero, false, nil
	}
	return entry.Item, true, nil
}

// SavePage writes items and the page in one transaction.
func (s *Store[T]) SavePage(feed string, page int, items []T, nextPage *int) error {
	key := PageKey(feed, page)
	now := s.now()

	cp := CachedPage{
		Key:      key,
		CachedAt: now,
		ItemIDs:  make([]int64, 0, len(items)),
		NextPage: nextPage,
		Version:  Version,
	}
	for _, item := range items {
		cp.ItemIDs = append(cp.ItemIDs, item.Key())
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(itemsBucket)
		for _, item := range items {
			if err := putItem(b, item, now); err != nil {
				return err
			}
		}

		data, err := json.Marshal(cp)
		if err != nil {
			return err
		}
		return tx.Bucket(pagesBucket).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("save page %s: %w", key, err)
	}

	for _, item := range items {
		s.items.Add(item.Key(), item)
	}
	return nil
}

func putItem[T Item](b *bolt.Bucket, item T, now time.Time) error {
	data, err := json.Marshal(itemEntry[T]{Item: item, CachedAt: now, Version: Version})
	if err != nil {
		return err
	}
	return b.Put(itemKey(item.Key()), data)
}

// Item returns a single cached item.
func (s *Store[T]) Item(id int64) (T, bool, error) {
	if item, ok := s.items.Get(id); ok {
		return item, true, nil
	}

	var item T
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		item, ok, err = s.decodeItem(tx.Bucket(itemsBucket).Get(itemKey(id)))
		return err
	})
	if err != nil {
		return item, false, err
	}
	if ok {
		s.items.Add(id, item)
	}
	return item, ok, nil
}

// SaveItem upserts a single item.
func (s *Store[T]) SaveItem(item T) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return putItem(tx.Bucket(itemsBucket), item, s.now())
	})
	if err != nil {
		return fmt.Errorf("save item %d: %w", item.Key(), err)
	}
	s.items.Add(item.Key(), item)
	return nil
}

// Clear removes all cached pages and items.
func (s *Store[T]) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{pagesBucket, itemsBucket} {
			if err := tx.DeleteBucket(bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
		}
		return createBuckets(tx)
	})
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.items.Purge()
	return nil
}

// Stats returns cache statistics. Pages younger than ttl count as fresh.
func (s *Store[T]) Stats(ttl time.Duration) (*Stats, error) {
	stats := &Stats{MemoryItems: s.items.Len()}
	now := s.now()

	err := s.db.View(func(tx *bolt.Tx) error {
		stats.ItemTotal = tx.Bucket(itemsBucket).Stats().KeyN
		return tx.Bucket(pagesBucket).ForEach(func(_, v []byte) error {
			stats.PageTotal++
			var cp CachedPage
			if err := json.Unmarshal(v, &cp); err != nil {
				return nil
			}
			if cp.Version == Version && now.Sub(cp.CachedAt) <= ttl {
				stats.PageFresh++
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
