package model

// Page is one page of a feed together with the pointer to the next one.
// A nil NextPage means the feed has no further pages.
type Page[T any] struct {
	Items    []T  `json:"items"`
	NextPage *int `json:"nextPage,omitempty"`
}

// HasMore reports whether another page can be requested.
func (p Page[T]) HasMore() bool {
	return p.NextPage != nil
}

// Result is one emission of a repository stream. IsStale marks values
// served from a cache entry older than its time-to-live.
type Result[T any] struct {
	Value   T
	IsStale bool
}

// MinPage returns the smallest non-nil page pointer, or nil when every
// input is nil.
func MinPage(pages ...*int) *int {
	var out *int
	for _, p := range pages {
		if p == nil {
			continue
		}
		if out == nil || *p < *out {
			v := *p
			out = &v
		}
	}
	return out
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
