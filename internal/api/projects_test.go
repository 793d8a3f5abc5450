package api

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiffcs/tanuki/internal/model"
)

func TestProjectsEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		query    ProjectListQuery
		wantURL  string
		wantAuth bool
	}{
		{
			name:     "explore is public",
			query:    ProjectListQuery{Filter: FilterPublic, Page: 1, PerPage: 20, OrderBy: "star_count", Sort: "desc"},
			wantURL:  "https://gitlab.example.com/api/v4/projects?order_by=star_count&sort=desc&page=1&per_page=20",
			wantAuth: false,
		},
		{
			name:     "owned with search",
			query:    ProjectListQuery{Filter: FilterOwned, Page: 2, PerPage: 50, Search: "tanuki app"},
			wantURL:  "https://gitlab.example.com/api/v4/projects?owned=true&search=tanuki+app&page=2&per_page=50",
			wantAuth: true,
		},
		{
			name:     "membership",
			query:    ProjectListQuery{Filter: FilterMembership},
			wantURL:  "https://gitlab.example.com/api/v4/projects?membership=true",
			wantAuth: true,
		},
		{
			name:     "starred",
			query:    ProjectListQuery{Filter: FilterStarred, OrderBy: "last_activity_at", Sort: "asc"},
			wantURL:  "https://gitlab.example.com/api/v4/projects?starred=true&order_by=last_activity_at&sort=asc",
			wantAuth: true,
		},
	}

	b, err := NewRequestBuilder("https://gitlab.example.com", "")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := ProjectsEndpoint(tt.query)
			u, err := b.BuildURL(ep)
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, u.String())
			assert.Equal(t, tt.wantAuth, ep.Options.AttachAuthorization)
		})
	}
}

func TestProjectDTOToModel(t *testing.T) {
	body := []byte(`{
		"id": 278964,
		"name": "GitLab",
		"name_with_namespace": "GitLab.org / GitLab",
		"path_with_namespace": "gitlab-org/gitlab",
		"web_url": "https://gitlab.com/gitlab-org/gitlab",
		"visibility": "public",
		"star_count": 5000,
		"forks_count": 10000,
		"created_at": "2015-05-20T10:47:11.949Z",
		"last_activity_at": "2025-06-01T08:00:00Z"
	}`)

	dto, err := decode[ProjectDTO](body)
	require.NoError(t, err)

	p := dto.ToModel()
	assert.Equal(t, int64(278964), p.ID)
	assert.Equal(t, "gitlab-org/gitlab", p.PathWithNamespace)
	assert.Equal(t, model.VisibilityPublic, p.Visibility)
	assert.Equal(t, 5000, p.StarCount)
	require.NotNil(t, p.LastActivityAt)
	assert.True(t, p.LastActivityAt.Equal(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)))
	require.NotNil(t, p.CreatedAt)
	assert.Equal(t, 949*time.Millisecond, time.Duration(p.CreatedAt.Nanosecond()))
}

func TestGetProjectConditional(t *testing.T) {
	var mu sync.Mutex
	var ifNoneMatch []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ifNoneMatch = append(ifNoneMatch, r.Header.Get("If-None-Match"))
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte(`{"id":5,"name":"five"}`))
	})

	_, err := client.GetProject(context.Background(), 5, true)
	require.NoError(t, err)
	_, err = client.GetProject(context.Background(), 5, false)
	require.NoError(t, err)
	_, err = client.GetProject(context.Background(), 5, true)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "", `"abc"`}, ifNoneMatch)
}

func TestPublicReadsWhileSignedOut(t *testing.T) {
	var mu sync.Mutex
	var gotAuth []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.URL.Path == "/api/v4/projects/7" {
			_, _ = w.Write([]byte(`{"id":7,"name":"public"}`))
			return
		}
		_, _ = w.Write([]byte("readme\n"))
	}, WithAuthorizer(staticAuthorizer{err: ErrUnauthorized}))

	project, err := client.GetProject(context.Background(), 7, false)
	require.NoError(t, err)
	assert.Equal(t, "public", project.Name)

	body, err := client.RawFile(context.Background(), 7, "README.md", "")
	require.NoError(t, err)
	assert.Equal(t, "readme\n", string(body))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", ""}, gotAuth)
}

func TestCurrentUser(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/user", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":1,"username":"root","name":"Administrator"}`))
	})

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "root", user.Username)
}
