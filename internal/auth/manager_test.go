package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiffcs/tanuki/internal/api"
)

type fakeRefresher struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	fn      func(ctx context.Context, refreshToken string) (Token, error)
}

func newFakeRefresher(fn func(ctx context.Context, refreshToken string) (Token, error)) *fakeRefresher {
	return &fakeRefresher{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
		fn:      fn,
	}
}

func (f *fakeRefresher) RefreshToken(ctx context.Context, refreshToken, _ string) (Token, error) {
	f.calls.Add(1)
	f.entered <- struct{}{}
	select {
	case <-f.release:
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
	return f.fn(ctx, refreshToken)
}

var testNow = time.Unix(1_750_000_000, 0)

func expiredToken(refresh string) Token {
	return Token{
		AccessToken:  "old",
		TokenType:    "Bearer",
		RefreshToken: refresh,
		ExpiresIn:    int64p(3600),
		CreatedAt:    float64p(float64(testNow.Add(-2 * time.Hour).Unix())),
	}
}

func freshToken(access string) Token {
	return Token{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64p(3600),
		CreatedAt:   float64p(float64(testNow.Unix())),
	}
}

func newTestManager(t *testing.T, initial *Token, refresher Refresher) (*Manager, *MemoryTokenStore) {
	t.Helper()
	store := NewMemoryTokenStore()
	if initial != nil {
		require.NoError(t, store.Save(context.Background(), *initial))
	}
	return NewManager(store, refresher, "client-1", WithClock(func() time.Time { return testNow })), store
}

func TestValidTokenWithoutToken(t *testing.T) {
	m, _ := newTestManager(t, nil, newFakeRefresher(nil))

	_, err := m.ValidToken(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestValidTokenLoadsFromStore(t *testing.T) {
	tok := freshToken("stored")
	m, _ := newTestManager(t, &tok, newFakeRefresher(nil))

	got, err := m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored", got.AccessToken)

	header, err := m.AuthorizationHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer stored", header)
}

func TestValidTokenExpiredWithoutRefreshToken(t *testing.T) {
	tok := expiredToken("")
	refresher := newFakeRefresher(nil)
	m, _ := newTestManager(t, &tok, refresher)

	_, err := m.ValidToken(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Zero(t, refresher.calls.Load())
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	tok := expiredToken("r1")
	refresher := newFakeRefresher(func(_ context.Context, refreshToken string) (Token, error) {
		assert.Equal(t, "r1", refreshToken)
		return freshToken("new"), nil
	})
	m, store := newTestManager(t, &tok, refresher)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Token, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = m.ValidToken(context.Background())
		}()
	}

	<-refresher.entered
	// Let the remaining callers join the flight before it completes.
	time.Sleep(50 * time.Millisecond)
	close(refresher.release)
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "new", results[i].AccessToken)
	}

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", saved.AccessToken)
	assert.Equal(t, "r1", saved.RefreshToken, "unrotated refresh token is kept")
}

func TestConcurrentCallersShareRefreshFailure(t *testing.T) {
	tok := expiredToken("r1")
	boom := &api.ServerError{StatusCode: 400}
	refresher := newFakeRefresher(func(context.Context, string) (Token, error) {
		return Token{}, boom
	})
	m, _ := newTestManager(t, &tok, refresher)

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.ValidToken(context.Background())
		}()
	}

	<-refresher.entered
	time.Sleep(50 * time.Millisecond)
	close(refresher.release)
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load())
	for _, err := range errs {
		assert.True(t, api.IsStatus(err, 400))
	}

	// The flight is cleared, so the next caller may retry.
	_, err := m.ValidToken(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(2), refresher.calls.Load())
}

func TestSignOutCancelsRefresh(t *testing.T) {
	tok := expiredToken("r1")
	refresher := newFakeRefresher(func(context.Context, string) (Token, error) {
		return freshToken("late"), nil
	})
	m, store := newTestManager(t, &tok, refresher)

	done := make(chan error, 1)
	go func() {
		_, err := m.ValidToken(context.Background())
		done <- err
	}()

	<-refresher.entered
	require.NoError(t, m.SignOut(context.Background()))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, api.ErrUnauthorized)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh was not cancelled")
	}

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, saved)

	_, err = m.ValidToken(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestCallerCancellationDoesNotAbortSharedRefresh(t *testing.T) {
	tok := expiredToken("r1")
	refresher := newFakeRefresher(func(context.Context, string) (Token, error) {
		return freshToken("new"), nil
	})
	m, _ := newTestManager(t, &tok, refresher)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := m.ValidToken(ctx)
		first <- err
	}()

	<-refresher.entered
	cancel()
	assert.True(t, errors.Is(<-first, context.Canceled))

	close(refresher.release)
	require.Eventually(t, func() bool {
		got, err := m.ValidToken(context.Background())
		return err == nil && got.AccessToken == "new"
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestStoreReplacesCachedToken(t *testing.T) {
	old := freshToken("one")
	m, store := newTestManager(t, &old, newFakeRefresher(nil))

	_, err := m.ValidToken(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Store(context.Background(), freshToken("two")))
	got, err := m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", got.AccessToken)

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", saved.AccessToken)
}

func TestLateCallerReusesCompletedRefresh(t *testing.T) {
	tok := expiredToken("r1")
	// The issuer rotates refresh tokens; r1 is only valid once.
	refresher := newFakeRefresher(func(_ context.Context, refreshToken string) (Token, error) {
		if refreshToken != "r1" {
			return Token{}, &api.ServerError{StatusCode: 400}
		}
		rotated := freshToken("new-from-r1")
		rotated.RefreshToken = "r2"
		return rotated, nil
	})
	close(refresher.release)
	m, _ := newTestManager(t, &tok, refresher)

	first, err := m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-from-r1", first.AccessToken)

	// A caller that read the expired token before the first refresh
	// finished asks for a refresh with r1 only now.
	late, err := m.refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "new-from-r1", late.AccessToken)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestLateCallerReusesUnrotatedRefresh(t *testing.T) {
	tok := expiredToken("r1")
	refresher := newFakeRefresher(func(context.Context, string) (Token, error) {
		return freshToken("new"), nil
	})
	close(refresher.release)
	m, _ := newTestManager(t, &tok, refresher)

	_, err := m.ValidToken(context.Background())
	require.NoError(t, err)

	late, err := m.refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "new", late.AccessToken)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestStoreOvertakesRefreshInFlight(t *testing.T) {
	tok := expiredToken("r1")
	refresher := newFakeRefresher(func(context.Context, string) (Token, error) {
		return freshToken("late"), nil
	})
	m, store := newTestManager(t, &tok, refresher)

	done := make(chan Token, 1)
	go func() {
		got, err := m.ValidToken(context.Background())
		assert.NoError(t, err)
		done <- got
	}()

	<-refresher.entered
	require.NoError(t, m.Store(context.Background(), freshToken("signed-in")))

	select {
	case got := <-done:
		assert.Equal(t, "signed-in", got.AccessToken)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh was not cancelled")
	}

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "signed-in", saved.AccessToken)

	got, err := m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "signed-in", got.AccessToken)
}

func TestSignedOutManagerAllowsPublicProjectRead(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":3,"name":"open"}`))
	}))
	t.Cleanup(server.Close)

	m, _ := newTestManager(t, nil, newFakeRefresher(nil))
	client, err := api.NewClient(server.URL, "", api.WithAuthorizer(m))
	require.NoError(t, err)

	project, err := client.GetProject(context.Background(), 3, true)
	require.NoError(t, err)
	assert.Equal(t, "open", project.Name)
	assert.Equal(t, int32(1), hits.Load())

	// Endpoints that require a session still refuse to go out.
	_, err = client.CurrentUser(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, int32(1), hits.Load())
}
