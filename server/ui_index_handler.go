package server

import (
	"encoding/json"
	"net/http"
)

// IndexHandler renders the landing page
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, pageIndex, "", nil, "")
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusNotFound, pageNotFound, "Page not found", nil, "")
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Session string `json:"session"`
}

// HealthHandler reports liveness and the session state, never the identity.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Session: s.sessions.Snapshot().Status.String()})
	}
}
