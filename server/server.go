package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/academy-portal/apiclient"
	"github.com/jrsteele09/academy-portal/credentials"
	"github.com/jrsteele09/academy-portal/guard"
	"github.com/jrsteele09/academy-portal/internal/config"
	"github.com/jrsteele09/academy-portal/session"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	router   chi.Router
	routes   []string
	config   config.Config
	api      *apiclient.Client
	sessions *session.Store
	creds    credentials.Store
	guard    *guard.Guard
	pages    *pages
	forms    *formValidator
}

func New(cfg config.Config, api *apiclient.Client, sessions *session.Store, creds credentials.Store) (*Server, error) {
	pages, err := loadPages()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to load templates: %w", err)
	}

	s := &Server{
		env:      cfg.GetEnv(),
		router:   chi.NewRouter(),
		config:   cfg,
		api:      api,
		sessions: sessions,
		creds:    creds,
		guard:    guard.New(sessions, guard.DefaultTable(), cfg.GetSessionSettleTimeout()),
		pages:    pages,
		forms:    newFormValidator(),
	}

	s.router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	s.router.NotFound(ChainMiddleware(s.NotFoundHandler(), s.HTMLMiddleWare()...))

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRouteHandler registers handler for a "METHOD /path" pattern.
func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		s.router.Handle(pattern, handler)
		return
	}
	s.router.Method(method, path, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.RegisterRouteHandler(pattern, http.HandlerFunc(handler))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}
