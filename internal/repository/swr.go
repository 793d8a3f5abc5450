package repository

import (
	"context"
	"iter"
	"time"

	"github.com/spiffcs/tanuki/internal/cache"
	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/model"
)

// FetchFunc loads one page from the network.
type FetchFunc[T cache.Item] func(ctx context.Context) (model.Page[T], error)

// PageStream serves one page of feed with stale-while-revalidate semantics.
//
// A non-empty cached page is yielded first, marked stale when older than
// ttl. A fresh cached page other than the first is trusted without a
// network call; the first page is always revalidated. A successful fetch is
// written back and yielded as fresh. A failed fetch ends the stream quietly
// when the cache was already yielded, and is yielded as the error otherwise.
func PageStream[T cache.Item](ctx context.Context, store cache.Cacher[T], feed string, page int, ttl time.Duration, fetch FetchFunc[T]) iter.Seq2[model.Result[model.Page[T]], error] {
	return func(yield func(model.Result[model.Page[T]], error) bool) {
		servedCache := false

		cached, err := store.ReadPage(feed, page, ttl)
		if err != nil {
			log.Warn("cache read failed", "feed", feed, "page", page, "error", err)
			cached = nil
		}

		if cached != nil && len(cached.Items) > 0 {
			value := model.Page[T]{Items: cached.Items, NextPage: cached.NextPage}
			if !yield(model.Result[model.Page[T]]{Value: value, IsStale: !cached.Fresh}, nil) {
				return
			}
			servedCache = true

			if cached.Fresh && page > 1 {
				return
			}
		}

		fresh, err := fetch(ctx)
		if err != nil {
			if servedCache {
				log.Debug("revalidation failed, keeping cached page", "feed", feed, "page", page, "error", err)
				return
			}
			yield(model.Result[model.Page[T]]{}, err)
			return
		}

		if err := store.SavePage(feed, page, fresh.Items, fresh.NextPage); err != nil {
			log.Warn("cache write failed", "feed", feed, "page", page, "error", err)
		}

		yield(model.Result[model.Page[T]]{Value: fresh}, nil)
	}
}

// Collect drains a stream and returns its last value. It fails only when
// the stream ends with an error.
func Collect[T any](seq iter.Seq2[model.Result[T], error]) (model.Result[T], error) {
	var last model.Result[T]
	for res, err := range seq {
		if err != nil {
			return last, err
		}
		last = res
	}
	return last, nil
}
