package guard

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/jrsteele09/academy-portal/session"
	"github.com/rs/zerolog/log"
)

type contextKey string

const shellContextKey contextKey = "shell"

// Sessions is the view of the session store the guards read.
type Sessions interface {
	Snapshot() session.Snapshot
	Wait(ctx context.Context) (session.Snapshot, error)
}

// Shell is the chrome a page renders inside.
type Shell struct {
	Session     session.Snapshot
	Path        string
	ShowNav     bool
	ShowSidebar bool
}

func (s Shell) Role() string {
	return s.Session.Role()
}

func (s Shell) Username() string {
	if !s.Session.Authenticated() {
		return ""
	}
	return s.Session.Identity.Username
}

// ShellFromContext returns the shell a guard placed on the request.
func ShellFromContext(ctx context.Context) (Shell, bool) {
	shell, ok := ctx.Value(shellContextKey).(Shell)
	return shell, ok
}

type Guard struct {
	sessions Sessions
	table    Table
	settle   time.Duration
}

func New(sessions Sessions, table Table, settle time.Duration) *Guard {
	return &Guard{sessions: sessions, table: table, settle: settle}
}

func (g *Guard) Table() Table {
	return g.table
}

// PublicShell guards marketing and login pages. When the session does not settle in time the
// page is rendered anyway: it is public.
func (g *Guard) PublicShell(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, settled := g.settled(r.Context())
		decision := DecidePublic(snap, r.URL.Path)
		if !settled {
			decision = Decision{Action: Render, ShowNav: r.URL.Path != "/login"}
		}
		g.apply(w, r, snap, decision, next)
	}
}

// AuthShell guards pages that need a session, taking the required role from the table.
func (g *Guard) AuthShell(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		required, _ := g.table.RequiredRole(r.URL.Path)
		g.authorise(w, r, required, next)
	}
}

// RequireRole guards a page with an explicit role, regardless of the table.
func (g *Guard) RequireRole(role string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			g.authorise(w, r, role, next)
		}
	}
}

func (g *Guard) authorise(w http.ResponseWriter, r *http.Request, required string, next http.HandlerFunc) {
	snap, _ := g.settled(r.Context())
	g.apply(w, r, snap, DecideAuth(snap, r.URL.RequestURI(), required), next)
}

// settled waits up to the settle timeout for the session to leave Unknown/Hydrating.
func (g *Guard) settled(ctx context.Context) (session.Snapshot, bool) {
	snap := g.sessions.Snapshot()
	if snap.Status.Settled() {
		return snap, true
	}
	ctx, cancel := context.WithTimeout(ctx, g.settle)
	defer cancel()
	snap, err := g.sessions.Wait(ctx)
	return snap, err == nil
}

func (g *Guard) apply(w http.ResponseWriter, r *http.Request, snap session.Snapshot, d Decision, next http.HandlerFunc) {
	switch d.Action {
	case Redirect:
		log.Debug().Str("path", r.URL.Path).Str("location", d.Location).Stringer("session", snap.Status).Msg("guard redirect")
		http.Redirect(w, r, d.Location, http.StatusSeeOther)
	case Wait:
		renderLoading(w, r)
	default:
		shell := Shell{Session: snap, Path: r.URL.Path, ShowNav: d.ShowNav, ShowSidebar: d.ShowSidebar}
		next(w, r.WithContext(context.WithValue(r.Context(), shellContextKey, shell)))
	}
}

var loadingTmpl = template.Must(template.New("loading").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="2;url={{.}}">
<title>Loading</title>
</head>
<body><p class="loading">Loading...</p></body>
</html>
`))

// renderLoading answers while the session is still being restored. The page reloads itself
// until the guard can decide.
func renderLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Retry-After", "2")
	if err := loadingTmpl.Execute(w, r.URL.RequestURI()); err != nil {
		log.Err(err).Msg("failed to render loading page")
	}
}
