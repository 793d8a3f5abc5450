package repository

import (
	"fmt"
	"strings"

	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/constants"
)

// Source names a project feed.
type Source string

const (
	SourceExplore    Source = "explore"
	SourceOwned      Source = "owned"
	SourceMembership Source = "membership"
	SourceStarred    Source = "starred"
	// SourceCombined merges owned and membership projects.
	SourceCombined Source = "combined"
)

// Sources lists every feed source.
func Sources() []Source {
	return []Source{SourceExplore, SourceOwned, SourceMembership, SourceStarred, SourceCombined}
}

// Authenticated reports whether the source needs a signed-in user.
func (s Source) Authenticated() bool {
	return s != SourceExplore
}

func (s Source) filter() (api.ProjectFilter, error) {
	switch s {
	case SourceExplore:
		return api.FilterPublic, nil
	case SourceOwned:
		return api.FilterOwned, nil
	case SourceMembership:
		return api.FilterMembership, nil
	case SourceStarred:
		return api.FilterStarred, nil
	default:
		return 0, fmt.Errorf("unknown project source %q", s)
	}
}

// SortField is the attribute a feed is ordered by.
type SortField string

const (
	SortStarCount    SortField = "starCount"
	SortLastActivity SortField = "lastActivity"
	SortName         SortField = "name"
	SortCreated      SortField = "created"
)

// SortFields lists every sort field.
func SortFields() []SortField {
	return []SortField{SortStarCount, SortLastActivity, SortName, SortCreated}
}

// orderBy maps the field onto the API's order_by value.
func (f SortField) orderBy() string {
	switch f {
	case SortStarCount:
		return "star_count"
	case SortLastActivity:
		return "last_activity_at"
	case SortName:
		return "name"
	case SortCreated:
		return "created_at"
	default:
		return ""
	}
}

// SortOrder is the direction of a sort.
type SortOrder string

const (
	Ascending  SortOrder = "ascending"
	Descending SortOrder = "descending"
)

func (o SortOrder) sort() string {
	switch o {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return ""
	}
}

// PageParams identifies one page of a feed.
type PageParams struct {
	Source  Source
	Sort    SortField
	Order   SortOrder
	Search  string
	Page    int
	PerPage int
}

// normalized fills defaults.
func (p PageParams) normalized() PageParams {
	if p.Source == "" {
		p.Source = SourceExplore
	}
	if p.Sort == "" {
		p.Sort = SortLastActivity
	}
	if p.Order == "" {
		p.Order = Descending
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = constants.DefaultPerPage
	}
	return p
}

// Validate reports unknown enum values.
func (p PageParams) Validate() error {
	p = p.normalized()
	if p.Source != SourceCombined {
		if _, err := p.Source.filter(); err != nil {
			return err
		}
	}
	if p.Sort.orderBy() == "" {
		return fmt.Errorf("unknown sort field %q", p.Sort)
	}
	if p.Order.sort() == "" {
		return fmt.Errorf("unknown sort order %q", p.Order)
	}
	return nil
}

// NormalizeSearch lowercases and trims a search term.
func NormalizeSearch(search string) string {
	return strings.ToLower(strings.TrimSpace(search))
}

// FeedKey derives the cache namespace of a feed. Different sources, sorts
// or search terms never share a key; the page number is not part of it.
func FeedKey(p PageParams) string {
	p = p.normalized()
	search := NormalizeSearch(p.Search)
	if search == "" {
		search = constants.NoSearchSentinel
	}
	return strings.Join([]string{string(p.Source), string(p.Sort), string(p.Order), search}, ":")
}

// query builds the list request for one filter.
func (p PageParams) query(filter api.ProjectFilter) api.ProjectListQuery {
	return api.ProjectListQuery{
		Filter:  filter,
		Page:    p.Page,
		PerPage: p.PerPage,
		Search:  strings.TrimSpace(p.Search),
		OrderBy: p.Sort.orderBy(),
		Sort:    p.Order.sort(),
	}
}
