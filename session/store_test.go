package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/academy-portal/apiclient"
	"github.com/jrsteele09/academy-portal/credentials"
	"github.com/jrsteele09/academy-portal/credentials/storefake"
	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"github.com/jrsteele09/academy-portal/session"
	"github.com/stretchr/testify/require"
)

type backend struct {
	profileStatus int
	profileBody   string
	profileGate   chan struct{}
	refreshStatus int
	refreshGate   chan struct{}
	refreshing    chan struct{}
	loginBody     string
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /profile/", func(w http.ResponseWriter, r *http.Request) {
		if b.profileGate != nil {
			<-b.profileGate
		}
		if b.profileStatus != 0 && b.profileStatus != http.StatusOK {
			w.WriteHeader(b.profileStatus)
			return
		}
		_, _ = w.Write([]byte(b.profileBody))
	})
	mux.HandleFunc("POST /token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		if b.refreshing != nil {
			b.refreshing <- struct{}{}
		}
		if b.refreshGate != nil {
			<-b.refreshGate
		}
		if b.refreshStatus != 0 {
			w.WriteHeader(b.refreshStatus)
			return
		}
		_, _ = w.Write([]byte(`{"access":"a2"}`))
	})
	mux.HandleFunc("POST /token/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
			return
		}
		_, _ = w.Write([]byte(b.loginBody))
	})
	mux.HandleFunc("POST /student-login/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access":"s1","refresh":"sr1","user":{"username":"MIRA0007","role":"student"}}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	return mux
}

func newStore(t *testing.T, b *backend, creds credentials.Store) (*session.Store, *apiclient.Client) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	client := apiclient.New(srv.URL, creds)
	store := session.New(client, creds, session.WithProfileTimeout(2*time.Second))
	t.Cleanup(store.Drain)
	return store, client
}

func TestStore_NoTokensIsAnonymous(t *testing.T) {
	store, _ := newStore(t, &backend{}, storefake.NewFakeStore())
	require.Equal(t, session.StatusUnknown, store.Snapshot().Status)

	require.NoError(t, store.Start(context.Background()))
	require.Equal(t, session.StatusAnonymous, store.Snapshot().Status)
}

func TestStore_OptimisticHydration(t *testing.T) {
	gate := make(chan struct{})
	b := &backend{profileGate: gate, profileBody: `{"username":"jane","role":"faculty"}`}
	creds := storefake.NewSeededFakeStore(map[credentials.Key]string{
		credentials.KeyAccess:   "a1",
		credentials.KeyRefresh:  "r1",
		credentials.KeyRole:     "faculty",
		credentials.KeyUsername: "jane.d",
	})
	store, _ := newStore(t, b, creds)

	require.NoError(t, store.Start(context.Background()))
	snap := store.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status, "reported before the profile fetch resolves")
	require.Equal(t, credentials.Identity{Role: "faculty", Username: "jane.d"}, snap.Identity)
	require.True(t, snap.Reconciling)

	close(gate)
	store.Drain()

	snap = store.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	require.Equal(t, credentials.Identity{Role: "faculty", Username: "jane"}, snap.Identity)
	require.False(t, snap.Reconciling)
	username, _ := creds.Value(credentials.KeyUsername)
	require.Equal(t, "jane", username)
}

func TestStore_HydratesIdentityFromProfile(t *testing.T) {
	b := &backend{profileBody: `{"username":"jane","role":"faculty"}`}
	creds := storefake.NewSeededFakeStore(map[credentials.Key]string{
		credentials.KeyAccess:  "a1",
		credentials.KeyRefresh: "r1",
		credentials.KeyRole:    "faculty",
	})
	store, _ := newStore(t, b, creds)

	require.NoError(t, store.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := store.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	require.Equal(t, credentials.Identity{Role: "faculty", Username: "jane"}, snap.Identity)

	role, _ := creds.Value(credentials.KeyRole)
	username, _ := creds.Value(credentials.KeyUsername)
	require.Equal(t, "faculty", role)
	require.Equal(t, "jane", username)
}

func TestStore_TransientProfileFailureKeepsSession(t *testing.T) {
	b := &backend{profileStatus: http.StatusServiceUnavailable}
	creds := storefake.NewSeededFakeStore(map[credentials.Key]string{
		credentials.KeyAccess:   "a1",
		credentials.KeyRefresh:  "r1",
		credentials.KeyRole:     "admin",
		credentials.KeyUsername: "root",
	})
	store, _ := newStore(t, b, creds)

	require.NoError(t, store.Start(context.Background()))
	store.Drain()

	snap := store.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	require.Equal(t, credentials.Identity{Role: "admin", Username: "root"}, snap.Identity)
	require.False(t, snap.Reconciling)
	_, hasAccess := creds.Value(credentials.KeyAccess)
	require.True(t, hasAccess)
}

func TestStore_TransientFailureWithoutIdentityIsAnonymous(t *testing.T) {
	b := &backend{profileStatus: http.StatusBadGateway}
	creds := storefake.NewSeededFakeStore(map[credentials.Key]string{
		credentials.KeyAccess:  "a1",
		credentials.KeyRefresh: "r1",
	})
	store, _ := newStore(t, b, creds)

	require.NoError(t, store.Start(context.Background()))
	require.Equal(t, session.StatusHydrating, store.Snapshot().Status)
	store.Drain()

	require.Equal(t, session.StatusAnonymous, store.Snapshot().Status)
	_, hasAccess := creds.Value(credentials.KeyAccess)
	require.True(t, hasAccess, "tokens are kept for the next attempt")
}

func TestStore_RejectedSessionIsCleared(t *testing.T) {
	b := &backend{profileStatus: http.StatusUnauthorized, refreshStatus: http.StatusUnauthorized}
	creds := storefake.NewSeededFakeStore(map[credentials.Key]string{
		credentials.KeyAccess:   "a1",
		credentials.KeyRefresh:  "r1",
		credentials.KeyRole:     "student",
		credentials.KeyUsername: "MIRA0001",
	})
	store, _ := newStore(t, b, creds)

	require.NoError(t, store.Start(context.Background()))
	store.Drain()

	require.Equal(t, session.StatusAnonymous, store.Snapshot().Status)
	for _, k := range credentials.SessionKeys {
		_, ok := creds.Value(k)
		require.False(t, ok, k)
	}
}

func TestStore_LogoutWinsOverInFlightProfile(t *testing.T) {
	gate := make(chan struct{})
	b := &backend{profileGate: gate, profileBody: `{"username":"jane","role":"faculty"}`}
	creds := storefake.NewSeededFakeStore(map[credentials.Key]string{
		credentials.KeyAccess:   "a1",
		credentials.KeyRefresh:  "r1",
		credentials.KeyRole:     "faculty",
		credentials.KeyUsername: "jane",
	})
	store, _ := newStore(t, b, creds)
	require.NoError(t, store.Start(context.Background()))

	require.NoError(t, store.Logout(context.Background()))
	require.Equal(t, session.StatusAnonymous, store.Snapshot().Status)

	close(gate)
	store.Drain()
	require.Equal(t, session.StatusAnonymous, store.Snapshot().Status)
	_, hasRole := creds.Value(credentials.KeyRole)
	require.False(t, hasRole)
}

func TestStore_LogoutWinsOverInFlightRefresh(t *testing.T) {
	gate := make(chan struct{})
	b := &backend{
		profileBody: `{"username":"jane","role":"faculty"}`,
		refreshGate: gate,
		refreshing:  make(chan struct{}, 1),
	}
	creds := storefake.NewSeededFakeStore(map[credentials.Key]string{
		credentials.KeyAccess:   "a1",
		credentials.KeyRefresh:  "r1",
		credentials.KeyRole:     "faculty",
		credentials.KeyUsername: "jane",
	})
	store, client := newStore(t, b, creds)
	require.NoError(t, store.Start(context.Background()))
	store.Drain()
	require.Equal(t, session.StatusAuthenticated, store.Snapshot().Status)

	errs := make(chan error, 1)
	go func() {
		_, err := client.Get(context.Background(), "batches/")
		errs <- err
	}()
	<-b.refreshing

	require.NoError(t, store.Logout(context.Background()))
	close(gate)
	require.ErrorIs(t, <-errs, perrors.ErrSessionEnded)

	require.Equal(t, session.StatusAnonymous, store.Snapshot().Status)
	for _, k := range credentials.SessionKeys {
		_, ok := creds.Value(k)
		require.False(t, ok, k)
	}

	restarted, _ := newStore(t, &backend{profileBody: `{"username":"jane","role":"faculty"}`}, creds)
	require.NoError(t, restarted.Start(context.Background()))
	restarted.Drain()
	require.Equal(t, session.StatusAnonymous, restarted.Snapshot().Status)
}

func TestStore_Login(t *testing.T) {
	b := &backend{loginBody: `{"access":"a1","refresh":"r1","role":"faculty"}`}
	creds := storefake.NewFakeStore()
	store, _ := newStore(t, b, creds)
	require.NoError(t, store.Start(context.Background()))

	id, err := store.Login(context.Background(), session.LoginRequest{Username: "jane", Password: "secret", Role: "faculty"})
	require.NoError(t, err)
	require.Equal(t, credentials.Identity{Role: "faculty", Username: "jane"}, id)
	require.Equal(t, session.StatusAuthenticated, store.Snapshot().Status)

	access, _ := creds.Value(credentials.KeyAccess)
	refresh, _ := creds.Value(credentials.KeyRefresh)
	require.Equal(t, "a1", access)
	require.Equal(t, "r1", refresh)
}

func TestStore_LoginRoleMismatchPersistsNothing(t *testing.T) {
	b := &backend{loginBody: `{"access":"a1","refresh":"r1","role":"student"}`}
	creds := storefake.NewFakeStore()
	store, _ := newStore(t, b, creds)
	require.NoError(t, store.Start(context.Background()))

	_, err := store.Login(context.Background(), session.LoginRequest{Username: "jane", Password: "secret", Role: "admin"})
	require.ErrorIs(t, err, perrors.ErrRoleMismatch)
	require.Equal(t, perrors.KindAuthorization, perrors.Classify(err))
	require.Equal(t, session.StatusAnonymous, store.Snapshot().Status)
	_, hasAccess := creds.Value(credentials.KeyAccess)
	require.False(t, hasAccess)
}

func TestStore_LoginBadCredentials(t *testing.T) {
	store, _ := newStore(t, &backend{}, storefake.NewFakeStore())
	require.NoError(t, store.Start(context.Background()))

	_, err := store.Login(context.Background(), session.LoginRequest{Username: "jane", Password: "wrong", Role: "faculty"})
	require.ErrorIs(t, err, perrors.ErrInvalidCredentials)
	require.NotErrorIs(t, err, perrors.ErrUnauthenticated)
	require.Equal(t, session.StatusAnonymous, store.Snapshot().Status)
}

func TestStore_StudentLogin(t *testing.T) {
	creds := storefake.NewFakeStore()
	store, _ := newStore(t, &backend{}, creds)
	require.NoError(t, store.Start(context.Background()))

	id, err := store.StudentLogin(context.Background(), "MIRA0007", "2004-05-01")
	require.NoError(t, err)
	require.Equal(t, credentials.Identity{Role: "student", Username: "MIRA0007"}, id)
	role, _ := creds.Value(credentials.KeyRole)
	require.Equal(t, "student", role)
}

func TestStore_RefreshFailureEndsSession(t *testing.T) {
	b := &backend{profileBody: `{"username":"jane","role":"faculty"}`, refreshStatus: http.StatusUnauthorized}
	creds := storefake.NewSeededFakeStore(map[credentials.Key]string{
		credentials.KeyAccess:   "a1",
		credentials.KeyRefresh:  "r1",
		credentials.KeyRole:     "faculty",
		credentials.KeyUsername: "jane",
	})
	store, client := newStore(t, b, creds)
	require.NoError(t, store.Start(context.Background()))
	store.Drain()
	require.Equal(t, session.StatusAuthenticated, store.Snapshot().Status)

	_, err := client.Get(context.Background(), "batches/")
	require.ErrorIs(t, err, perrors.ErrSessionEnded)
	require.Equal(t, session.StatusAnonymous, store.Snapshot().Status)
	for _, k := range credentials.SessionKeys {
		_, ok := creds.Value(k)
		require.False(t, ok, k)
	}
}

func TestStore_WaitTimesOutWhileHydrating(t *testing.T) {
	gate := make(chan struct{})
	b := &backend{profileGate: gate, profileBody: `{"username":"jane","role":"faculty"}`}
	creds := storefake.NewSeededFakeStore(map[credentials.Key]string{credentials.KeyAccess: "a1"})
	store, _ := newStore(t, b, creds)
	require.NoError(t, store.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	snap, err := store.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, session.StatusHydrating, snap.Status)

	close(gate)
}

func TestStore_Subscribe(t *testing.T) {
	b := &backend{loginBody: `{"access":"a1","refresh":"r1","role":"admin"}`}
	store, _ := newStore(t, b, storefake.NewFakeStore())
	updates, cancel := store.Subscribe()
	defer cancel()

	require.NoError(t, store.Start(context.Background()))
	require.Equal(t, session.StatusAnonymous, (<-updates).Status)

	_, err := store.Login(context.Background(), session.LoginRequest{Username: "root", Password: "secret", Role: "admin"})
	require.NoError(t, err)
	snap := <-updates
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	require.Equal(t, "admin", snap.Role())

	require.NoError(t, store.Logout(context.Background()))
	require.Equal(t, session.StatusAnonymous, (<-updates).Status)

	cancel()
	_, open := <-updates
	require.False(t, open)
}
