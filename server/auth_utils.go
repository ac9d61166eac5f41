package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/academy-portal/guard"
)

func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirectSuccess is an htmx aware See Other redirect.
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithNotice redirects to path with a one-off banner message.
func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, notice string) {
	redirectSuccess(w, r, path+"?notice="+url.QueryEscape(notice))
}

// postLoginTarget returns next when role may open it, otherwise the role's home.
func postLoginTarget(table guard.Table, role, next string) string {
	u, err := url.Parse(guard.SafeNext(next))
	if err != nil || u.Path == "" || u.Path == "/" {
		return guard.HomePath(role)
	}
	if required, ok := table.RequiredRole(u.Path); ok && required != role {
		return guard.HomePath(role)
	}
	return u.RequestURI()
}
