package repository

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/cache"
	"github.com/spiffcs/tanuki/internal/model"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeRemote struct {
	mu       sync.Mutex
	lists    map[api.ProjectFilter]api.Paginated[api.ProjectDTO]
	listErr  error
	project  api.ProjectDTO
	getErr   error
	queries  []api.ProjectListQuery
	getCalls []bool
}

func (f *fakeRemote) ListProjects(_ context.Context, q api.ProjectListQuery) (api.Paginated[api.ProjectDTO], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.listErr != nil {
		return api.Paginated[api.ProjectDTO]{}, f.listErr
	}
	return f.lists[q.Filter], nil
}

func (f *fakeRemote) GetProject(_ context.Context, _ int64, conditional bool) (api.ProjectDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls = append(f.getCalls, conditional)
	return f.project, f.getErr
}

func (f *fakeRemote) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func dto(id int64, lastActivity time.Time) api.ProjectDTO {
	return api.ProjectDTO{ID: id, Name: "project", LastActivityAt: &api.Time{Time: lastActivity}}
}

func project(id int64) model.Project {
	return model.Project{ID: id, Name: "cached"}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRepo(t *testing.T, remote Remote) (*Projects, *cache.Store[model.Project], *testClock) {
	t.Helper()
	clk := &testClock{now: baseTime}
	store, err := cache.Open[model.Project](filepath.Join(t.TempDir(), "cache.db"), cache.WithClock(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewProjects(remote, store, WithTTL(5*time.Minute)), store, clk
}

type emission struct {
	ids   []int64
	stale bool
	next  *int
	err   error
}

func drain(seq iter.Seq2[model.Result[model.Page[model.Project]], error]) []emission {
	var out []emission
	for res, err := range seq {
		if err != nil {
			out = append(out, emission{err: err})
			continue
		}
		e := emission{stale: res.IsStale, next: res.Value.NextPage}
		for _, p := range res.Value.Items {
			e.ids = append(e.ids, p.ID)
		}
		out = append(out, e)
	}
	return out
}

func TestFeedKey(t *testing.T) {
	base := PageParams{Source: SourceExplore, Sort: SortStarCount, Order: Descending}
	assert.Equal(t, "explore:starCount:descending:__none__", FeedKey(base))

	searched := base
	searched.Search = "  GitLab Runner "
	assert.Equal(t, "explore:starCount:descending:gitlab runner", FeedKey(searched))

	paged := base
	paged.Page = 7
	assert.Equal(t, FeedKey(base), FeedKey(paged), "page is not part of the feed key")

	keys := map[string]struct{}{}
	for _, source := range Sources() {
		for _, sort := range SortFields() {
			for _, order := range []SortOrder{Ascending, Descending} {
				for _, search := range []string{"", "go"} {
					keys[FeedKey(PageParams{Source: source, Sort: sort, Order: order, Search: search})] = struct{}{}
				}
			}
		}
	}
	assert.Len(t, keys, len(Sources())*len(SortFields())*2*2)
}

func TestPageParamsValidate(t *testing.T) {
	assert.NoError(t, PageParams{}.Validate())
	assert.NoError(t, PageParams{Source: SourceCombined}.Validate())
	assert.Error(t, PageParams{Source: "trending"}.Validate())
	assert.Error(t, PageParams{Sort: "forks"}.Validate())
	assert.Error(t, PageParams{Order: "sideways"}.Validate())
}

func TestPageStaleCacheThenNetwork(t *testing.T) {
	remote := &fakeRemote{lists: map[api.ProjectFilter]api.Paginated[api.ProjectDTO]{
		api.FilterPublic: {
			Items:    []api.ProjectDTO{dto(3, baseTime), dto(4, baseTime)},
			PageInfo: &api.PageInfo{Page: 1, PerPage: 20, NextPage: model.IntPtr(2)},
		},
	}}
	repo, store, clk := newTestRepo(t, remote)

	params := PageParams{Source: SourceExplore, Sort: SortStarCount, Order: Descending, Page: 1}
	feed := FeedKey(params)
	require.Equal(t, "explore:starCount:descending:__none__", feed)
	require.NoError(t, store.SavePage(feed, 1, []model.Project{project(1), project(2)}, nil))
	clk.Advance(time.Hour)

	got := drain(repo.Page(context.Background(), params))
	require.Len(t, got, 2)
	assert.Equal(t, emission{ids: []int64{1, 2}, stale: true}, got[0])
	assert.Equal(t, emission{ids: []int64{3, 4}, stale: false, next: model.IntPtr(2)}, got[1])

	cached, err := store.ReadPage(feed, 1, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, []int64{3, 4}, []int64{cached.Items[0].ID, cached.Items[1].ID})
	assert.Equal(t, model.IntPtr(2), cached.NextPage)
	assert.True(t, cached.Fresh)

	require.Len(t, remote.queries, 1)
	q := remote.queries[0]
	assert.Equal(t, "star_count", q.OrderBy)
	assert.Equal(t, "desc", q.Sort)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 20, q.PerPage)
}

func TestPageFreshNonFirstPageSkipsNetwork(t *testing.T) {
	remote := &fakeRemote{}
	repo, store, _ := newTestRepo(t, remote)

	params := PageParams{Source: SourceStarred, Page: 2}
	require.NoError(t, store.SavePage(FeedKey(params), 2, []model.Project{project(5), project(6)}, model.IntPtr(3)))

	got := drain(repo.Page(context.Background(), params))
	require.Len(t, got, 1)
	assert.Equal(t, emission{ids: []int64{5, 6}, stale: false, next: model.IntPtr(3)}, got[0])
	assert.Zero(t, remote.listCalls())
}

func TestPageFreshFirstPageRevalidates(t *testing.T) {
	remote := &fakeRemote{lists: map[api.ProjectFilter]api.Paginated[api.ProjectDTO]{
		api.FilterOwned: {Items: []api.ProjectDTO{dto(9, baseTime)}},
	}}
	repo, store, _ := newTestRepo(t, remote)

	params := PageParams{Source: SourceOwned, Page: 1}
	require.NoError(t, store.SavePage(FeedKey(params), 1, []model.Project{project(8)}, nil))

	got := drain(repo.Page(context.Background(), params))
	require.Len(t, got, 2)
	assert.Equal(t, emission{ids: []int64{8}, stale: false}, got[0])
	assert.Equal(t, emission{ids: []int64{9}, stale: false}, got[1])
	assert.Equal(t, 1, remote.listCalls())
}

func TestPageStaleNonFirstPageRevalidates(t *testing.T) {
	remote := &fakeRemote{lists: map[api.ProjectFilter]api.Paginated[api.ProjectDTO]{
		api.FilterPublic: {Items: []api.ProjectDTO{dto(21, baseTime)}},
	}}
	repo, store, clk := newTestRepo(t, remote)

	params := PageParams{Page: 3}
	require.NoError(t, store.SavePage(FeedKey(params), 3, []model.Project{project(20)}, nil))
	clk.Advance(10 * time.Minute)

	got := drain(repo.Page(context.Background(), params))
	require.Len(t, got, 2)
	assert.True(t, got[0].stale)
	assert.Equal(t, []int64{21}, got[1].ids)
}

func TestPageEmptyCachedPageIsNotServed(t *testing.T) {
	remote := &fakeRemote{lists: map[api.ProjectFilter]api.Paginated[api.ProjectDTO]{
		api.FilterPublic: {Items: []api.ProjectDTO{dto(1, baseTime)}},
	}}
	repo, store, _ := newTestRepo(t, remote)

	params := PageParams{Page: 2}
	require.NoError(t, store.SavePage(FeedKey(params), 2, nil, nil))

	got := drain(repo.Page(context.Background(), params))
	require.Len(t, got, 1)
	assert.Equal(t, []int64{1}, got[0].ids)
}

func TestPageFailureFallsBackToCache(t *testing.T) {
	remote := &fakeRemote{listErr: &api.ServerError{StatusCode: 503}}
	repo, store, clk := newTestRepo(t, remote)

	params := PageParams{Page: 1}
	require.NoError(t, store.SavePage(FeedKey(params), 1, []model.Project{project(1)}, nil))
	clk.Advance(time.Hour)

	got := drain(repo.Page(context.Background(), params))
	require.Len(t, got, 1)
	assert.Equal(t, emission{ids: []int64{1}, stale: true}, got[0])
}

func TestPageFailureWithoutCachePropagates(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	var delays []time.Duration
	client, err := api.NewClient(baseURL, "", api.WithSleeper(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}))
	require.NoError(t, err)

	repo, _, _ := newTestRepo(t, client)

	got := drain(repo.Page(context.Background(), PageParams{Source: SourceExplore, Page: 1}))
	require.Len(t, got, 1)

	var transportErr *api.TransportError
	assert.ErrorAs(t, got[0].err, &transportErr)
	assert.Equal(t, []time.Duration{150 * time.Millisecond, 300 * time.Millisecond}, delays)
}

func TestPageStopsWhenConsumerStops(t *testing.T) {
	remote := &fakeRemote{}
	repo, store, clk := newTestRepo(t, remote)

	params := PageParams{Page: 1}
	require.NoError(t, store.SavePage(FeedKey(params), 1, []model.Project{project(1)}, nil))
	clk.Advance(time.Hour)

	for range repo.Page(context.Background(), params) {
		break
	}
	assert.Zero(t, remote.listCalls())
}

func TestPageInvalidParams(t *testing.T) {
	repo, _, _ := newTestRepo(t, &fakeRemote{})
	got := drain(repo.Page(context.Background(), PageParams{Source: "trending"}))
	require.Len(t, got, 1)
	assert.Error(t, got[0].err)
}

func TestCombinedScopeMerge(t *testing.T) {
	t1 := baseTime.Add(-3 * time.Hour)
	t2 := baseTime.Add(-1 * time.Hour)
	t2b := baseTime.Add(-30 * time.Minute)
	t3 := baseTime.Add(-2 * time.Hour)

	owned := dto(2, t2)
	owned.Name = "owned copy"
	member := dto(2, t2b)
	member.Name = "membership copy"

	remote := &fakeRemote{lists: map[api.ProjectFilter]api.Paginated[api.ProjectDTO]{
		api.FilterOwned: {
			Items:    []api.ProjectDTO{dto(1, t1), owned},
			PageInfo: &api.PageInfo{Page: 1, PerPage: 20, NextPage: model.IntPtr(2)},
		},
		api.FilterMembership: {
			Items:    []api.ProjectDTO{member, dto(3, t3)},
			PageInfo: &api.PageInfo{Page: 1, PerPage: 20},
		},
	}}
	repo, _, _ := newTestRepo(t, remote)

	res, err := Collect(repo.Page(context.Background(), PageParams{Source: SourceCombined, Search: "app", Page: 1}))
	require.NoError(t, err)

	items := res.Value.Items
	require.Len(t, items, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, "owned copy", items[0].Name)
	assert.Equal(t, model.IntPtr(2), res.Value.NextPage)
	assert.False(t, res.IsStale)

	require.Len(t, remote.queries, 2)
	for _, q := range remote.queries {
		assert.Equal(t, "app", q.Search)
		assert.Equal(t, 1, q.Page)
	}
}

func TestCombinedScopeFailsWhenEitherSourceFails(t *testing.T) {
	remote := &fakeRemote{listErr: api.ErrUnauthorized}
	repo, _, _ := newTestRepo(t, remote)

	_, err := Collect(repo.Page(context.Background(), PageParams{Source: SourceCombined}))
	assert.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestMergePages(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		v := baseTime.Add(d)
		return &v
	}

	first := model.Page[model.Project]{
		Items: []model.Project{
			{ID: 5, LastActivityAt: at(0)},
			{ID: 1},
		},
	}
	second := model.Page[model.Project]{
		Items: []model.Project{
			{ID: 4, LastActivityAt: at(0)},
			{ID: 5, LastActivityAt: at(time.Hour)},
			{ID: 2, LastActivityAt: at(-time.Hour)},
		},
		NextPage: model.IntPtr(4),
	}

	merged := MergePages(first, second)
	var ids []int64
	for _, p := range merged.Items {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{4, 5, 2, 1}, ids, "ties break by id, missing activity sorts last")
	assert.Equal(t, model.IntPtr(4), merged.NextPage)

	assert.Nil(t, MergePages(model.Page[model.Project]{}, model.Page[model.Project]{}).NextPage)
}

func TestProjectSWR(t *testing.T) {
	t.Run("no cache", func(t *testing.T) {
		remote := &fakeRemote{project: dto(7, baseTime)}
		repo, store, _ := newTestRepo(t, remote)

		var got []model.Result[model.Project]
		for res, err := range repo.Project(context.Background(), 7) {
			require.NoError(t, err)
			got = append(got, res)
		}
		require.Len(t, got, 1)
		assert.False(t, got[0].IsStale)
		assert.Equal(t, []bool{false}, remote.getCalls, "unconditional without a cached copy")

		_, ok, err := store.Item(7)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("not modified confirms cache", func(t *testing.T) {
		remote := &fakeRemote{getErr: api.ErrNotModified}
		repo, store, _ := newTestRepo(t, remote)
		require.NoError(t, store.SaveItem(project(7)))

		var got []model.Result[model.Project]
		for res, err := range repo.Project(context.Background(), 7) {
			require.NoError(t, err)
			got = append(got, res)
		}
		require.Len(t, got, 2)
		assert.True(t, got[0].IsStale)
		assert.False(t, got[1].IsStale)
		assert.Equal(t, "cached", got[1].Value.Name)
		assert.Equal(t, []bool{true}, remote.getCalls)
	})

	t.Run("failure with cache", func(t *testing.T) {
		remote := &fakeRemote{getErr: &api.ServerError{StatusCode: 500}}
		repo, store, _ := newTestRepo(t, remote)
		require.NoError(t, store.SaveItem(project(7)))

		res, err := Collect(repo.Project(context.Background(), 7))
		require.NoError(t, err)
		assert.True(t, res.IsStale)
	})

	t.Run("failure without cache", func(t *testing.T) {
		remote := &fakeRemote{getErr: &api.ServerError{StatusCode: 404}}
		repo, _, _ := newTestRepo(t, remote)

		_, err := Collect(repo.Project(context.Background(), 7))
		assert.True(t, api.IsStatus(err, 404))
		assert.False(t, errors.Is(err, api.ErrNotModified))
	})
}
