// Package repository serves project data from the on-disk cache and the
// API with stale-while-revalidate semantics.
package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/cache"
	"github.com/spiffcs/tanuki/internal/constants"
	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/model"
)

// Remote is the network source of projects.
type Remote interface {
	ListProjects(ctx context.Context, q api.ProjectListQuery) (api.Paginated[api.ProjectDTO], error)
	GetProject(ctx context.Context, id int64, conditional bool) (api.ProjectDTO, error)
}

// Ensure the API client satisfies Remote.
var _ Remote = (*api.Client)(nil)

// Projects is the project repository.
type Projects struct {
	remote Remote
	cache  cache.Cacher[model.Project]
	ttl    time.Duration
}

// Option configures Projects.
type Option func(*Projects)

// WithTTL sets how long cached pages count as fresh.
func WithTTL(ttl time.Duration) Option {
	return func(p *Projects) {
		p.ttl = ttl
	}
}

// NewProjects creates a repository over remote and store.
func NewProjects(remote Remote, store cache.Cacher[model.Project], opts ...Option) *Projects {
	p := &Projects{
		remote: remote,
		cache:  store,
		ttl:    constants.PageCacheTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TTL returns the page freshness window.
func (r *Projects) TTL() time.Duration {
	return r.ttl
}

// Page streams one page of a project feed: the cached page first when
// there is one, then the network result.
func (r *Projects) Page(ctx context.Context, params PageParams) iter.Seq2[model.Result[model.Page[model.Project]], error] {
	params = params.normalized()
	if err := params.Validate(); err != nil {
		return func(yield func(model.Result[model.Page[model.Project]], error) bool) {
			yield(model.Result[model.Page[model.Project]]{}, err)
		}
	}

	feed := FeedKey(params)
	log.Debug("loading project page", "feed", feed, "page", params.Page)

	return PageStream(ctx, r.cache, feed, params.Page, r.ttl, func(ctx context.Context) (model.Page[model.Project], error) {
		if params.Source == SourceCombined {
			return r.fetchCombined(ctx, params)
		}
		return r.fetchSingle(ctx, params)
	})
}

func (r *Projects) fetchSingle(ctx context.Context, params PageParams) (model.Page[model.Project], error) {
	filter, err := params.Source.filter()
	if err != nil {
		return model.Page[model.Project]{}, err
	}
	resp, err := r.remote.ListProjects(ctx, params.query(filter))
	if err != nil {
		return model.Page[model.Project]{}, fmt.Errorf("%s projects: %w", params.Source, err)
	}
	return model.Page[model.Project]{
		Items:    api.ProjectsToModel(resp.Items),
		NextPage: resp.NextPage(),
	}, nil
}

// Project streams a single project: the cached copy first, marked stale,
// then the network result. A 304 confirms the cached copy.
func (r *Projects) Project(ctx context.Context, id int64) iter.Seq2[model.Result[model.Project], error] {
	return func(yield func(model.Result[model.Project], error) bool) {
		cached, ok, err := r.cache.Item(id)
		if err != nil {
			log.Warn("cache read failed", "project", id, "error", err)
			ok = false
		}
		if ok {
			if !yield(model.Result[model.Project]{Value: cached, IsStale: true}, nil) {
				return
			}
		}

		// Without a cached copy a 304 would leave nothing to show.
		dto, err := r.remote.GetProject(ctx, id, ok)
		switch {
		case errors.Is(err, api.ErrNotModified) && ok:
			log.Debug("project not modified", "project", id)
			yield(model.Result[model.Project]{Value: cached}, nil)
			return
		case err != nil:
			if ok {
				log.Debug("revalidation failed, keeping cached project", "project", id, "error", err)
				return
			}
			yield(model.Result[model.Project]{}, fmt.Errorf("project %d: %w", id, err))
			return
		}

		project := dto.ToModel()
		if err := r.cache.SaveItem(project); err != nil {
			log.Warn("cache write failed", "project", id, "error", err)
		}
		yield(model.Result[model.Project]{Value: project}, nil)
	}
}
