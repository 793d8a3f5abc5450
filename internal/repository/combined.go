package repository

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/model"
)

// fetchCombined fetches the owned and membership feeds for the same page
// in parallel and merges them.
func (r *Projects) fetchCombined(ctx context.Context, params PageParams) (model.Page[model.Project], error) {
	var owned, membership api.Paginated[api.ProjectDTO]

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := r.remote.ListProjects(gctx, params.query(api.FilterOwned))
		if err != nil {
			return fmt.Errorf("owned projects: %w", err)
		}
		owned = resp
		return nil
	})

	g.Go(func() error {
		resp, err := r.remote.ListProjects(gctx, params.query(api.FilterMembership))
		if err != nil {
			return fmt.Errorf("membership projects: %w", err)
		}
		membership = resp
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.Page[model.Project]{}, err
	}

	return MergePages(
		model.Page[model.Project]{Items: api.ProjectsToModel(owned.Items), NextPage: owned.NextPage()},
		model.Page[model.Project]{Items: api.ProjectsToModel(membership.Items), NextPage: membership.NextPage()},
	), nil
}

// MergePages merges two pages of independently paginated feeds. The first
// occurrence of an id wins, the result is ordered by last activity (newest
// first, ties by id) and the next page is the smallest one either feed
// still has.
func MergePages(first, second model.Page[model.Project]) model.Page[model.Project] {
	seen := make(map[int64]struct{}, len(first.Items)+len(second.Items))
	merged := make([]model.Project, 0, len(first.Items)+len(second.Items))

	for _, items := range [][]model.Project{first.Items, second.Items} {
		for _, p := range items {
			if _, ok := seen[p.Key()]; ok {
				continue
			}
			seen[p.Key()] = struct{}{}
			merged = append(merged, p)
		}
	}

	model.SortByActivity(merged)

	return model.Page[model.Project]{
		Items:    merged,
		NextPage: model.MinPage(first.NextPage, second.NextPage),
	}
}
