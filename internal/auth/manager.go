package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/metrics"
)

// Refresher exchanges a refresh token for a new token.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken, clientID string) (Token, error)
}

// Manager owns the current token. Concurrent callers that find the token
// expired share one refresh exchange.
type Manager struct {
	store     TokenStore
	refresher Refresher
	clientID  string
	now       func() time.Time

	mu         sync.Mutex
	cached     *Token
	generation uint64
	cancel     context.CancelFunc

	group singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock sets the clock used for expiry decisions.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a token manager backed by store. clientID may be empty.
func NewManager(store TokenStore, refresher Refresher, clientID string, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		refresher: refresher,
		clientID:  clientID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ValidToken returns a token that is not expired, refreshing it when needed.
// It fails with api.ErrUnauthorized when there is no token, or when the
// token is expired and cannot be refreshed.
func (m *Manager) ValidToken(ctx context.Context) (Token, error) {
	tok, err := m.current(ctx)
	if err != nil {
		return Token{}, err
	}
	if tok == nil {
		return Token{}, fmt.Errorf("%w: not signed in", api.ErrUnauthorized)
	}
	if !tok.Expired(m.now()) {
		return *tok, nil
	}
	if !tok.Refreshable() {
		return Token{}, fmt.Errorf("%w: token expired", api.ErrUnauthorized)
	}
	return m.refresh(ctx, tok.RefreshToken)
}

// AuthorizationHeader implements api.Authorizer.
func (m *Manager) AuthorizationHeader(ctx context.Context) (string, error) {
	tok, err := m.ValidToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.AuthorizationHeader(), nil
}

// Store persists tok and makes it the current token. A refresh in flight
// is cancelled and its callers receive tok.
func (m *Manager) Store(ctx context.Context, tok Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(ctx, tok); err != nil {
		return err
	}
	m.generation++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.cached = &tok
	return nil
}

// SignOut clears the stored and cached token and cancels a refresh in
// flight. Callers waiting on that refresh receive api.ErrUnauthorized.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.generation++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.cached = nil
	err := m.store.Clear(ctx)
	m.mu.Unlock()

	log.Debug("signed out")
	return err
}

// current returns the in-memory token, falling back to the store.
func (m *Manager) current(ctx context.Context) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil {
		tok := *m.cached
		return &tok, nil
	}

	tok, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if tok == nil {
		return nil, nil
	}
	m.cached = tok
	out := *tok
	return &out, nil
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (Token, error) {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	ch := m.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return m.doRefresh(ctx, gen, refreshToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
}

// doRefresh runs once per flight. It is detached from the first caller's
// cancellation; only SignOut and Store cancel it.
func (m *Manager) doRefresh(ctx context.Context, gen uint64, refreshToken string) (Token, error) {
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	m.mu.Lock()
	if m.generation != gen {
		defer m.mu.Unlock()
		return m.replaced()
	}
	// An earlier flight may have finished between the caller's expiry check
	// and this one starting. Never replay a refresh token it rotated away.
	if c := m.cached; c != nil {
		if !c.Expired(m.now()) {
			m.mu.Unlock()
			return *c, nil
		}
		if c.RefreshToken != refreshToken {
			if !c.Refreshable() {
				m.mu.Unlock()
				return Token{}, fmt.Errorf("%w: token expired", api.ErrUnauthorized)
			}
			refreshToken = c.RefreshToken
		}
	}
	m.cancel = cancel
	m.mu.Unlock()

	log.Debug("refreshing access token")
	tok, err := m.refresher.RefreshToken(rctx, refreshToken, m.clientID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancel = nil

	if m.generation != gen {
		metrics.TokenRefreshes.WithLabelValues(metrics.OutcomeCancelled).Inc()
		return m.replaced()
	}
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(metrics.OutcomeFailure).Inc()
		log.Debug("token refresh failed", "error", err)
		if errors.Is(err, context.Canceled) {
			return Token{}, fmt.Errorf("%w: refresh cancelled", api.ErrUnauthorized)
		}
		return Token{}, fmt.Errorf("refresh token: %w", err)
	}

	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	if err := m.store.Save(rctx, tok); err != nil {
		metrics.TokenRefreshes.WithLabelValues(metrics.OutcomeFailure).Inc()
		return Token{}, fmt.Errorf("save refreshed token: %w", err)
	}
	m.cached = &tok
	metrics.TokenRefreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return tok, nil
}

// replaced answers a flight overtaken by Store or SignOut. m.mu must be held.
func (m *Manager) replaced() (Token, error) {
	if m.cached != nil {
		return *m.cached, nil
	}
	return Token{}, fmt.Errorf("%w: signed out", api.ErrUnauthorized)
}
