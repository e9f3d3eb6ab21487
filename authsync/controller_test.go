package authsync_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shulebook/shulebook-go/apiclient"
	"github.com/shulebook/shulebook-go/authsync"
	"github.com/shulebook/shulebook-go/identity"
	"github.com/shulebook/shulebook-go/identity/staticprovider"
	"github.com/shulebook/shulebook-go/syncstate"
	"github.com/shulebook/shulebook-go/syncstate/inmem"
	"github.com/shulebook/shulebook-go/tenant"
)

const (
	timeout = time.Second
	tick    = time.Millisecond
)

func snapshot(userID, token string) identity.Snapshot {
	return identity.Snapshot{
		User:    &identity.User{ID: userID, Email: userID + "@example.com"},
		Session: &identity.Session{AccessToken: token},
	}
}

type syncBackend struct {
	srv   *httptest.Server
	posts atomic.Int64

	mu         sync.Mutex
	lastHeader http.Header
	status     int
	body       string
}

func newSyncBackend(t *testing.T) *syncBackend {
	t.Helper()
	b := &syncBackend{status: http.StatusOK, body: `{"user":{"id":"user-1","email":"jane.doe@example.com","tenant_id":"greenwood"}}`}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, authsync.Endpoint, r.URL.Path)
		b.posts.Add(1)
		b.mu.Lock()
		b.lastHeader = r.Header.Clone()
		status, body := b.status, b.body
		b.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *syncBackend) respond(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
	b.body = body
}

func (b *syncBackend) header(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastHeader.Get(name)
}

func newController(t *testing.T, backend *syncBackend, opts ...authsync.Option) (*authsync.Controller, syncstate.Store) {
	t.Helper()
	store := inmem.NewStore()
	c, err := authsync.NewController(apiclient.New(backend.srv.URL), store, opts...)
	require.NoError(t, err)
	return c, store
}

func TestNewController_Validation(t *testing.T) {
	_, err := authsync.NewController(nil, inmem.NewStore())
	require.Error(t, err)

	_, err = authsync.NewController(apiclient.New(""), nil)
	require.Error(t, err)
}

func TestController_IdempotentSync(t *testing.T) {
	backend := newSyncBackend(t)
	c, store := newController(t, backend)

	snap := snapshot("user-1", "tok-1")
	require.Equal(t, authsync.OutcomeSynced, c.Reconcile(context.Background(), snap))

	// repeated reconciles with the same tuple issue no further POSTs
	for i := 0; i < 5; i++ {
		require.Equal(t, authsync.OutcomeAlreadySynced, c.Reconcile(context.Background(), snap))
	}
	require.EqualValues(t, 1, backend.posts.Load())

	value, ok := store.Get(syncstate.Key("user-1"))
	require.True(t, ok)
	require.Equal(t, "tok-1", value)
}

func TestController_TokenChangeTriggersResync(t *testing.T) {
	backend := newSyncBackend(t)
	c, store := newController(t, backend)

	require.Equal(t, authsync.OutcomeSynced, c.Reconcile(context.Background(), snapshot("user-1", "tok-1")))
	require.Equal(t, authsync.OutcomeSynced, c.Reconcile(context.Background(), snapshot("user-1", "tok-2")))
	require.EqualValues(t, 2, backend.posts.Load())

	value, _ := store.Get(syncstate.Key("user-1"))
	require.Equal(t, "tok-2", value)
}

func TestController_NoSyncWhileLoadingOrUnauthenticated(t *testing.T) {
	backend := newSyncBackend(t)
	c, _ := newController(t, backend)

	tests := []struct {
		name string
		snap identity.Snapshot
	}{
		{"auth loading", identity.Snapshot{User: &identity.User{ID: "user-1"}, Session: &identity.Session{AccessToken: "tok-1"}, Loading: true}},
		{"no user", identity.Snapshot{Session: &identity.Session{AccessToken: "tok-1"}}},
		{"no session", identity.Snapshot{User: &identity.User{ID: "user-1"}}},
		{"empty token", identity.Snapshot{User: &identity.User{ID: "user-1"}, Session: &identity.Session{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, authsync.OutcomeNotReady, c.Reconcile(context.Background(), tt.snap))
		})
	}
	require.Zero(t, backend.posts.Load())
}

func TestController_FailureLeavesRetryEligible(t *testing.T) {
	backend := newSyncBackend(t)
	backend.respond(http.StatusBadGateway, `{"message":"backend down"}`)
	c, store := newController(t, backend)

	snap := snapshot("user-1", "tok-1")
	require.Equal(t, authsync.OutcomeFailed, c.Reconcile(context.Background(), snap))

	_, ok := store.Get(syncstate.Key("user-1"))
	require.False(t, ok, "failed sync must not mark the pair as synced")

	// the next natural trigger re-attempts
	backend.respond(http.StatusOK, `{"user":{"id":"user-1","email":"jane.doe@example.com","tenant_id":"greenwood"}}`)
	require.Equal(t, authsync.OutcomeSynced, c.Reconcile(context.Background(), snap))
	require.EqualValues(t, 2, backend.posts.Load())
}

func TestController_UnreadableSuccessBodyIsFailure(t *testing.T) {
	backend := newSyncBackend(t)
	backend.respond(http.StatusOK, `{not json`)
	c, store := newController(t, backend)

	require.Equal(t, authsync.OutcomeFailed, c.Reconcile(context.Background(), snapshot("user-1", "tok-1")))
	_, ok := store.Get(syncstate.Key("user-1"))
	require.False(t, ok)
}

func TestController_TenantHeader(t *testing.T) {
	t.Run("attached by default when resolvable", func(t *testing.T) {
		backend := newSyncBackend(t)
		c, _ := newController(t, backend, authsync.WithTenantResolver(tenant.Static("greenwood")))

		c.Reconcile(context.Background(), snapshot("user-1", "tok-1"))
		require.Equal(t, "greenwood", backend.header("x-tenant-id"))
		require.Equal(t, "Bearer tok-1", backend.header("Authorization"))
	})

	t.Run("omitted when unresolvable", func(t *testing.T) {
		backend := newSyncBackend(t)
		c, _ := newController(t, backend, authsync.WithTenantResolver(tenant.Static("")))

		c.Reconcile(context.Background(), snapshot("user-1", "tok-1"))
		require.Empty(t, backend.header("x-tenant-id"))
	})

	t.Run("omitted when opted out", func(t *testing.T) {
		backend := newSyncBackend(t)
		c, _ := newController(t, backend,
			authsync.WithTenantResolver(tenant.Static("greenwood")),
			authsync.WithoutTenantHeader(),
		)

		c.Reconcile(context.Background(), snapshot("user-1", "tok-1"))
		require.Empty(t, backend.header("x-tenant-id"))
	})
}

func TestController_InFlightGuard(t *testing.T) {
	release := make(chan struct{})
	var posts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"user":{"id":"user-1"}}`))
	}))
	defer srv.Close()

	c, err := authsync.NewController(apiclient.New(srv.URL), inmem.NewStore())
	require.NoError(t, err)

	snap := snapshot("user-1", "tok-1")
	first := make(chan authsync.Outcome, 1)
	go func() { first <- c.Reconcile(context.Background(), snap) }()

	require.Eventually(t, func() bool { return posts.Load() == 1 }, timeout, tick)

	// a duplicate trigger while the POST is mid-flight is a no-op
	require.Equal(t, authsync.OutcomeInFlight, c.Reconcile(context.Background(), snap))

	close(release)
	require.Equal(t, authsync.OutcomeSynced, <-first)
	require.EqualValues(t, 1, posts.Load())
}

func TestController_Bind(t *testing.T) {
	backend := newSyncBackend(t)
	c, _ := newController(t, backend)

	p := staticprovider.New()
	stop := c.Bind(context.Background(), p)
	defer stop()

	// loading at bind time: nothing synced yet
	require.Zero(t, backend.posts.Load())

	p.Set(&identity.User{ID: "user-1"}, &identity.Session{AccessToken: "tok-1"})
	require.EqualValues(t, 1, backend.posts.Load())

	// token refresh re-syncs
	p.Set(&identity.User{ID: "user-1"}, &identity.Session{AccessToken: "tok-2"})
	require.EqualValues(t, 2, backend.posts.Load())

	// logout then identical re-login: pair already recorded, no new POST
	p.Clear()
	p.Set(&identity.User{ID: "user-1"}, &identity.Session{AccessToken: "tok-2"})
	require.EqualValues(t, 2, backend.posts.Load())

	stop()
	p.Set(&identity.User{ID: "user-9"}, &identity.Session{AccessToken: "tok-9"})
	require.EqualValues(t, 2, backend.posts.Load(), "stopped binding must not sync")
}
