// Package listing holds the state of a paged project list and guards it
// against results of superseded loads.
package listing

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/metrics"
	"github.com/spiffcs/tanuki/internal/model"
	"github.com/spiffcs/tanuki/internal/repository"
)

// ErrSuperseded is returned by a load whose result was discarded because a
// newer load started.
var ErrSuperseded = errors.New("load superseded")

// PageSource streams pages of a feed.
type PageSource interface {
	Page(ctx context.Context, params repository.PageParams) iter.Seq2[model.Result[model.Page[model.Project]], error]
}

// Ensure the repository satisfies PageSource.
var _ PageSource = (*repository.Projects)(nil)

// Phase is what the store is doing.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoadingMore
)

// State is a snapshot of the list.
type State struct {
	Query    repository.PageParams
	Items    []model.Project
	Page     int
	NextPage *int
	IsStale  bool
	Phase    Phase
	Err      error
}

// HasMore reports whether LoadMore can fetch another page.
func (s State) HasMore() bool {
	return s.NextPage != nil
}

// Store owns one paged list. Reload and ApplySearch cancel any load in
// flight; results of a load that was overtaken are discarded.
type Store struct {
	source   PageSource
	observer func(State)

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	state  State
}

// Option configures a Store.
type Option func(*Store)

// WithObserver registers a callback invoked with every applied state. It
// runs with the store locked and must not call back into the store.
func WithObserver(fn func(State)) Option {
	return func(s *Store) {
		s.observer = fn
	}
}

// NewStore creates a store listing query. The page field of query is ignored.
func NewStore(source PageSource, query repository.PageParams, opts ...Option) *Store {
	query.Page = 0
	s := &Store{
		source: source,
		state:  State{Query: query},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() State {
	st := s.state
	st.Items = append([]model.Project(nil), s.state.Items...)
	return st
}

// Reload loads the first page, replacing the current items.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	query := s.state.Query
	s.mu.Unlock()
	return s.start(ctx, query)
}

// ApplySearch changes the search term and reloads.
func (s *Store) ApplySearch(ctx context.Context, search string) error {
	s.mu.Lock()
	query := s.state.Query
	s.mu.Unlock()
	query.Search = search
	return s.start(ctx, query)
}

// start supersedes whatever is in flight and loads page 1 of query.
func (s *Store) start(ctx context.Context, query repository.PageParams) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = State{Query: query, Phase: PhaseLoading}
	s.notify()
	s.mu.Unlock()
	defer cancel()

	params := query
	params.Page = 1
	return s.consume(ctx, seq, params, nil)
}

// LoadMore appends the next page. It is a no-op when there is no next page
// or another load is running.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Phase != PhaseIdle || s.state.NextPage == nil {
		s.mu.Unlock()
		return nil
	}
	seq := s.seq
	base := append([]model.Project(nil), s.state.Items...)
	params := s.state.Query
	params.Page = *s.state.NextPage
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state.Phase = PhaseLoadingMore
	s.state.Err = nil
	s.notify()
	s.mu.Unlock()
	defer cancel()

	return s.consume(ctx, seq, params, base)
}

// consume applies every emission of the page stream while seq is still
// current. base holds the items of earlier pages when loading more.
func (s *Store) consume(ctx context.Context, seq uint64, params repository.PageParams, base []model.Project) error {
	var streamErr error
	for res, err := range s.source.Page(ctx, params) {
		if err != nil {
			streamErr = err
			break
		}
		if !s.apply(seq, func(st *State) {
			st.Items = appendUnique(base, res.Value.Items)
			st.Page = params.Page
			st.NextPage = res.Value.NextPage
			st.IsStale = res.IsStale
		}) {
			return ErrSuperseded
		}
	}

	if !s.apply(seq, func(st *State) {
		st.Phase = PhaseIdle
		st.Err = streamErr
		s.cancel = nil
	}) {
		return ErrSuperseded
	}
	return streamErr
}

// apply mutates the state under the lock when seq is still current.
func (s *Store) apply(seq uint64, fn func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		metrics.SupersededLoads.Inc()
		log.Debug("discarding superseded load", "seq", seq, "current", s.seq)
		return false
	}
	fn(&s.state)
	s.notify()
	return true
}

// notify must be called with mu held.
func (s *Store) notify() {
	if s.observer != nil {
		s.observer(s.snapshot())
	}
}

// appendUnique appends the items of next whose id is not already in base.
func appendUnique(base, next []model.Project) []model.Project {
	out := make([]model.Project, 0, len(base)+len(next))
	seen := make(map[int64]struct{}, len(base)+len(next))
	for _, items := range [][]model.Project{base, next} {
		for _, p := range items {
			if _, ok := seen[p.Key()]; ok {
				continue
			}
			seen[p.Key()] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
