package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/academy-portal/credentials"
	"github.com/jrsteele09/academy-portal/guard"
	"github.com/jrsteele09/academy-portal/session"
	"github.com/stretchr/testify/require"
)

func authenticated(role, username string) session.Snapshot {
	return session.Snapshot{Status: session.StatusAuthenticated, Identity: credentials.Identity{Role: role, Username: username}}
}

var anonymous = session.Snapshot{Status: session.StatusAnonymous}

func TestTable_RequiredRole(t *testing.T) {
	table := guard.DefaultTable()

	tests := []struct {
		path string
		role string
		ok   bool
	}{
		{"/admin", "admin", true},
		{"/admin/courses", "admin", true},
		{"/faculty/students/new", "faculty", true},
		{"/student", "student", true},
		{"/administrator", "", false},
		{"/students", "", false},
		{"/", "", false},
		{"/explore/courses", "", false},
	}
	for _, tt := range tests {
		role, ok := table.RequiredRole(tt.path)
		require.Equal(t, tt.ok, ok, tt.path)
		require.Equal(t, tt.role, role, tt.path)
	}

	nested := guard.Table{Rules: []guard.Rule{{Prefix: "/admin", Role: "admin"}, {Prefix: "/admin/reports", Role: "faculty"}}}
	role, _ := nested.RequiredRole("/admin/reports/daily")
	require.Equal(t, "faculty", role, "longest prefix wins")
}

func TestDecidePublic(t *testing.T) {
	d := guard.DecidePublic(authenticated("faculty", "jane"), "/login")
	require.Equal(t, guard.Redirect, d.Action)
	require.Equal(t, "/faculty", d.Location)

	d = guard.DecidePublic(authenticated("faculty", "jane"), "/explore/courses")
	require.Equal(t, guard.Redirect, d.Action)
	require.Equal(t, "/faculty", d.Location)

	d = guard.DecidePublic(authenticated("faculty", "jane"), "/")
	require.Equal(t, guard.Render, d.Action)
	require.True(t, d.ShowNav)

	d = guard.DecidePublic(anonymous, "/login")
	require.Equal(t, guard.Render, d.Action)
	require.False(t, d.ShowNav)

	d = guard.DecidePublic(session.Snapshot{Status: session.StatusHydrating}, "/login")
	require.Equal(t, guard.Wait, d.Action)
}

func TestDecideAuth(t *testing.T) {
	d := guard.DecideAuth(authenticated("student", "MIRA0001"), "/admin", "admin")
	require.Equal(t, guard.Redirect, d.Action)
	require.Equal(t, "/student", d.Location)

	d = guard.DecideAuth(authenticated("admin", "root"), "/admin", "admin")
	require.Equal(t, guard.Render, d.Action)
	require.True(t, d.ShowNav)
	require.True(t, d.ShowSidebar)

	d = guard.DecideAuth(anonymous, "/admin/courses?page=2", "admin")
	require.Equal(t, guard.Redirect, d.Action)
	require.Equal(t, "/login?next=%2Fadmin%2Fcourses%3Fpage%3D2", d.Location)

	d = guard.DecideAuth(authenticated("registrar", "x"), "/admin", "admin")
	require.Equal(t, "/", d.Location, "a role without an area goes to the root")

	d = guard.DecideAuth(session.Snapshot{}, "/admin", "admin")
	require.Equal(t, guard.Wait, d.Action)

	optimistic := authenticated("admin", "root")
	optimistic.Reconciling = true
	require.Equal(t, guard.Render, guard.DecideAuth(optimistic, "/admin", "admin").Action)
}

func TestSafeNext(t *testing.T) {
	require.Equal(t, "/admin/courses", guard.SafeNext("/admin/courses"))
	require.Equal(t, "", guard.SafeNext("https://evil.example/admin"))
	require.Equal(t, "", guard.SafeNext("//evil.example"))
	require.Equal(t, "", guard.SafeNext("/login?next=/admin"))
	require.Equal(t, "", guard.SafeNext("admin"))
	require.Equal(t, "/login", guard.LoginPath("https://evil.example"))
}

type fakeSessions struct {
	mu      sync.Mutex
	snap    session.Snapshot
	settled chan struct{}
}

func (f *fakeSessions) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSessions) Wait(ctx context.Context) (session.Snapshot, error) {
	if f.settled == nil {
		return f.Snapshot(), nil
	}
	select {
	case <-f.settled:
		return f.Snapshot(), nil
	case <-ctx.Done():
		return f.Snapshot(), ctx.Err()
	}
}

func (f *fakeSessions) settle(snap session.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
	close(f.settled)
}

func okHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shell, ok := guard.ShellFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte("page for " + shell.Username()))
	}
}

func TestAuthShell_AnonymousRedirectsToLogin(t *testing.T) {
	g := guard.New(&fakeSessions{snap: anonymous}, guard.DefaultTable(), time.Second)
	rec := httptest.NewRecorder()
	g.AuthShell(okHandler(t))(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next=%2Fadmin", rec.Header().Get("Location"))
}

func TestAuthShell_RendersForMatchingRole(t *testing.T) {
	g := guard.New(&fakeSessions{snap: authenticated("admin", "root")}, guard.DefaultTable(), time.Second)
	rec := httptest.NewRecorder()
	g.AuthShell(okHandler(t))(rec, httptest.NewRequest(http.MethodGet, "/admin/courses", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "page for root", rec.Body.String())
}

func TestAuthShell_WaitsForHydration(t *testing.T) {
	sessions := &fakeSessions{snap: session.Snapshot{Status: session.StatusHydrating}, settled: make(chan struct{})}
	g := guard.New(sessions, guard.DefaultTable(), 2*time.Second)

	go func() {
		time.Sleep(20 * time.Millisecond)
		sessions.settle(authenticated("faculty", "jane"))
	}()

	rec := httptest.NewRecorder()
	g.AuthShell(okHandler(t))(rec, httptest.NewRequest(http.MethodGet, "/faculty", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "page for jane", rec.Body.String())
}

func TestAuthShell_LoadingPageWhenUnsettled(t *testing.T) {
	sessions := &fakeSessions{snap: session.Snapshot{Status: session.StatusHydrating}, settled: make(chan struct{})}
	g := guard.New(sessions, guard.DefaultTable(), 10*time.Millisecond)

	rec := httptest.NewRecorder()
	g.AuthShell(okHandler(t))(rec, httptest.NewRequest(http.MethodGet, "/faculty", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Loading")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestPublicShell(t *testing.T) {
	g := guard.New(&fakeSessions{snap: authenticated("faculty", "jane")}, guard.DefaultTable(), time.Second)

	rec := httptest.NewRecorder()
	g.PublicShell(okHandler(t))(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/faculty", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	g.PublicShell(okHandler(t))(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicShell_RendersWhenUnsettled(t *testing.T) {
	sessions := &fakeSessions{snap: session.Snapshot{Status: session.StatusHydrating}, settled: make(chan struct{})}
	g := guard.New(sessions, guard.DefaultTable(), 10*time.Millisecond)

	rec := httptest.NewRecorder()
	g.PublicShell(okHandler(t))(rec, httptest.NewRequest(http.MethodGet, "/explore/courses", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "page for ", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	g := guard.New(&fakeSessions{snap: authenticated("student", "MIRA0001")}, guard.Table{}, time.Second)
	rec := httptest.NewRecorder()
	g.RequireRole("faculty")(okHandler(t))(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/student", rec.Header().Get("Location"))
}
