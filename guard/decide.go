package guard

import (
	"github.com/jrsteele09/academy-portal/session"
)

type Action int

const (
	Render Action = iota
	Redirect
	// Wait means the session has not settled yet and nothing should be shown.
	Wait
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	case Wait:
		return "wait"
	}
	return "unknown"
}

type Decision struct {
	Action   Action
	Location string
	// ShowNav shows the navigation bar; ShowSidebar the role sidebar of the authenticated chrome.
	ShowNav     bool
	ShowSidebar bool
}

// DecidePublic guards marketing and login pages. An authenticated user is sent home from
// everywhere except the root path, which doubles as a landing page.
func DecidePublic(snap session.Snapshot, path string) Decision {
	if !snap.Status.Settled() {
		return Decision{Action: Wait}
	}
	if snap.Authenticated() && path != "/" {
		return Decision{Action: Redirect, Location: HomePath(snap.Identity.Role)}
	}
	return Decision{Action: Render, ShowNav: path != "/login"}
}

// DecideAuth guards pages that need a session. An empty required role admits any
// authenticated user. attempted is the request URI to come back to after logging in.
func DecideAuth(snap session.Snapshot, attempted, required string) Decision {
	switch {
	case !snap.Status.Settled():
		return Decision{Action: Wait}
	case !snap.Authenticated():
		return Decision{Action: Redirect, Location: LoginPath(attempted)}
	case required != "" && snap.Identity.Role != required:
		return Decision{Action: Redirect, Location: HomePath(snap.Identity.Role)}
	}
	return Decision{Action: Render, ShowNav: true, ShowSidebar: true}
}
