package api

import (
	"context"
	"strconv"

	"github.com/spiffcs/tanuki/internal/model"
)

// ProjectDTO is the wire shape of a project.
type ProjectDTO struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	NameWithNamespace string `json:"name_with_namespace"`
	PathWithNamespace string `json:"path_with_namespace"`
	Description       string `json:"description"`
	WebURL            string `json:"web_url"`
	AvatarURL         string `json:"avatar_url"`
	DefaultBranch     string `json:"default_branch"`
	Visibility        string `json:"visibility"`
	StarCount         int    `json:"star_count"`
	ForksCount        int    `json:"forks_count"`
	Archived          bool   `json:"archived"`
	CreatedAt         *Time  `json:"created_at"`
	LastActivityAt    *Time  `json:"last_activity_at"`
}

// ToModel maps the wire shape to the domain type.
func (d ProjectDTO) ToModel() model.Project {
	return model.Project{
		ID:                d.ID,
		Name:              d.Name,
		NameWithNamespace: d.NameWithNamespace,
		PathWithNamespace: d.PathWithNamespace,
		Description:       d.Description,
		WebURL:            d.WebURL,
		AvatarURL:         d.AvatarURL,
		DefaultBranch:     d.DefaultBranch,
		Visibility:        model.Visibility(d.Visibility),
		StarCount:         d.StarCount,
		ForksCount:        d.ForksCount,
		Archived:          d.Archived,
		CreatedAt:         d.CreatedAt.Ptr(),
		LastActivityAt:    d.LastActivityAt.Ptr(),
	}
}

// ProjectsToModel maps a slice of wire projects.
func ProjectsToModel(dtos []ProjectDTO) []model.Project {
	out := make([]model.Project, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.ToModel())
	}
	return out
}

// ProjectFilter selects which projects a list request returns.
type ProjectFilter int

const (
	// FilterPublic lists every visible project without authentication.
	FilterPublic ProjectFilter = iota
	FilterOwned
	FilterMembership
	FilterStarred
)

// ProjectListQuery is one page request against GET /projects.
type ProjectListQuery struct {
	Filter  ProjectFilter
	Page    int
	PerPage int
	Search  string
	OrderBy string
	Sort    string
}

// ProjectsEndpoint builds the endpoint for q.
func ProjectsEndpoint(q ProjectListQuery) Endpoint {
	query := make([]QueryItem, 0, 6)
	switch q.Filter {
	case FilterOwned:
		query = append(query, Q("owned", "true"))
	case FilterMembership:
		query = append(query, Q("membership", "true"))
	case FilterStarred:
		query = append(query, Q("starred", "true"))
	}
	if q.OrderBy != "" {
		query = append(query, Q("order_by", q.OrderBy))
	}
	if q.Sort != "" {
		query = append(query, Q("sort", q.Sort))
	}
	if q.Search != "" {
		query = append(query, Q("search", q.Search))
	}
	if q.Page > 0 {
		query = append(query, QInt("page", q.Page))
	}
	if q.PerPage > 0 {
		query = append(query, QInt("per_page", q.PerPage))
	}

	ep := Get("/projects", query...)
	ep.Options.AttachAuthorization = q.Filter != FilterPublic
	return ep
}

// ListProjects fetches one page of projects.
func (c *Client) ListProjects(ctx context.Context, q ProjectListQuery) (Paginated[ProjectDTO], error) {
	return SendPaginated[ProjectDTO](ctx, c, ProjectsEndpoint(q))
}

// GetProject fetches a single project. A conditional request sends the
// last seen ETag and surfaces a 304 as ErrNotModified.
func (c *Client) GetProject(ctx context.Context, id int64, conditional bool) (ProjectDTO, error) {
	ep := Get("/projects/" + strconv.FormatInt(id, 10))
	ep.Options.UseETag = conditional
	ep.Options.AuthorizationOptional = true
	return Send[ProjectDTO](ctx, c, ep)
}
