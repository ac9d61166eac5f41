// Package guard decides, for every portal page, whether to render it, redirect, or wait for
// the session to settle. Role routing lives in one prefix table instead of in each view.
package guard

import (
	"net/url"
	"sort"
	"strings"

	"github.com/jrsteele09/academy-portal/session"
)

// Rule requires Role for every path under Prefix.
type Rule struct {
	Prefix string
	Role   string
}

type Table struct {
	Rules []Rule
}

// DefaultTable maps each role's area to that role.
func DefaultTable() Table {
	return Table{Rules: []Rule{
		{Prefix: "/admin", Role: session.RoleAdmin},
		{Prefix: "/faculty", Role: session.RoleFaculty},
		{Prefix: "/student", Role: session.RoleStudent},
	}}
}

// RequiredRole returns the role of the longest rule matching path. A prefix matches the path
// itself and anything below it, so "/admin" does not match "/administrator".
func (t Table) RequiredRole(path string) (string, bool) {
	rules := append([]Rule(nil), t.Rules...)
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].Prefix) > len(rules[j].Prefix)
	})
	for _, rule := range rules {
		prefix := strings.TrimSuffix(rule.Prefix, "/")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return rule.Role, true
		}
	}
	return "", false
}

// HomePath is where a user with role lands. Roles the portal has no area for go to the root,
// which renders for everyone.
func HomePath(role string) string {
	if !session.ValidRole(role) {
		return "/"
	}
	return "/" + role
}

// LoginPath is the login page remembering where the user was going.
func LoginPath(next string) string {
	next = SafeNext(next)
	if next == "" || next == "/" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// SafeNext keeps next only when it is a path on this site.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	if strings.HasPrefix(u.Path, "/login") || strings.HasPrefix(u.Path, "/logout") {
		return ""
	}
	return next
}
