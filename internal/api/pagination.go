package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spiffcs/tanuki/internal/constants"
)

// Pagination response headers.
const (
	HeaderPage       = "X-Page"
	HeaderPerPage    = "X-Per-Page"
	HeaderNextPage   = "X-Next-Page"
	HeaderPrevPage   = "X-Prev-Page"
	HeaderTotal      = "X-Total"
	HeaderTotalPages = "X-Total-Pages"
	HeaderLink       = "Link"
)

// PageInfo is the pagination metadata of a list response.
type PageInfo struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"perPage"`
	NextPage   *int `json:"nextPage,omitempty"`
	PrevPage   *int `json:"prevPage,omitempty"`
	Total      *int `json:"total,omitempty"`
	TotalPages *int `json:"totalPages,omitempty"`
}

// ParsePageInfo reads pagination metadata from response headers. When the
// explicit next/prev headers are missing it falls back to the Link header.
// It returns nil when the response carries no pagination signal at all.
func ParsePageInfo(h http.Header) *PageInfo {
	page := headerInt(h, HeaderPage)
	perPage := headerInt(h, HeaderPerPage)
	link := headerValue(h, HeaderLink)

	if page == nil && perPage == nil && link == "" {
		return nil
	}

	info := &PageInfo{
		Page:       1,
		PerPage:    constants.DefaultPerPage,
		NextPage:   headerInt(h, HeaderNextPage),
		PrevPage:   headerInt(h, HeaderPrevPage),
		Total:      headerInt(h, HeaderTotal),
		TotalPages: headerInt(h, HeaderTotalPages),
	}
	if page != nil {
		info.Page = *page
	}
	if perPage != nil {
		info.PerPage = *perPage
	}

	if link != "" && (info.NextPage == nil || info.PrevPage == nil) {
		links := ParseLinks(link)
		if info.NextPage == nil {
			info.NextPage = pageFromURL(links["next"])
		}
		if info.PrevPage == nil {
			info.PrevPage = pageFromURL(links["prev"])
		}
	}

	return info
}

// ParseLinks extracts all URLs from a Link header by relationship type.
// Each entry is <url> followed by ;-separated parameters; rel may appear
// anywhere among them and may list several space-separated types.
func ParseLinks(linkHeader string) map[string]string {
	links := make(map[string]string)

	rest := linkHeader
	for {
		start := strings.IndexByte(rest, '<')
		if start < 0 {
			return links
		}
		end := strings.IndexByte(rest[start:], '>')
		if end < 0 {
			return links
		}
		target := rest[start+1 : start+end]
		rest = rest[start+end+1:]

		params := rest
		if next := strings.IndexByte(rest, '<'); next >= 0 {
			params = rest[:next]
		}
		for _, rel := range strings.Fields(linkParam(params, "rel")) {
			links[strings.ToLower(rel)] = target
		}
	}
}

// linkParam returns the value of the named parameter in the ;-separated
// params that follow a Link target, unquoted.
func linkParam(params, name string) string {
	for _, param := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(param, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), name) {
			continue
		}
		value = strings.TrimSpace(value)
		if quoted, ok := strings.CutPrefix(value, `"`); ok {
			value, _, _ = strings.Cut(quoted, `"`)
			return value
		}
		if i := strings.IndexAny(value, ", "); i >= 0 {
			value = value[:i]
		}
		return value
	}
	return ""
}

// pageFromURL returns the page query parameter of rawURL.
func pageFromURL(rawURL string) *int {
	if rawURL == "" {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	n, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil {
		return nil
	}
	return &n
}

// headerValue looks a header up by canonical name, then by its lowercase
// form for header maps that were not built through http.Header.Set.
func headerValue(h http.Header, name string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	if vs := h[strings.ToLower(name)]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func headerInt(h http.Header, name string) *int {
	v := strings.TrimSpace(headerValue(h, name))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
