package server

import (
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/academy-portal/session"
	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	public := s.HTMLMiddleWare(s.guard.PublicShell)

	s.RegisterRouteHandler("GET "+RouteIndex, ChainMiddleware(s.IndexHandler(), public...))
	s.RegisterRouteHandler("GET "+RouteHealthz, s.HealthHandler())

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageUIHandler(), public...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), public...))
	s.RegisterRouteHandler("POST "+RouteStudentLogin, ChainMiddleware(s.StudentLoginSubmissionHandler(), public...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// Public catalog
	s.RegisterRouteHandler("GET "+RouteExploreCourses, ChainMiddleware(s.ExploreCoursesHandler(), public...))
	s.RegisterRouteHandler("GET "+RouteExploreCourse, ChainMiddleware(s.ExploreCourseHandler(), public...))
	s.RegisterRouteHandler("GET "+RouteExploreWorkshops, ChainMiddleware(s.ExploreWorkshopsHandler(), public...))
	s.RegisterRouteHandler("GET "+RouteExploreWorkshopRegister, ChainMiddleware(s.WorkshopRegistrationFormHandler(), public...))
	s.RegisterRouteHandler("POST "+RouteExploreWorkshopRegister, ChainMiddleware(s.WorkshopRegistrationSubmissionHandler(), public...))

	// Role areas, guarded by the prefix table
	authed := s.HTMLMiddleWare(s.guard.AuthShell)
	for _, role := range session.Roles {
		home := "/" + role
		s.RegisterRouteHandler("GET "+home, ChainMiddleware(s.DashboardHandler(role), authed...))
		s.RegisterRouteHandler("GET "+home+RouteRoleView, ChainMiddleware(s.ResourceViewHandler(role), authed...))
	}

	// Faculty enrollment
	s.RegisterRouteHandler("GET "+RouteFacultyNewStudent, ChainMiddleware(s.EnrollmentFormHandler(), authed...))
	s.RegisterRouteHandler("POST "+RouteFacultyNewStudent, ChainMiddleware(s.EnrollmentSubmissionHandler(), authed...))
	s.RegisterRouteHandler("POST "+RouteFacultyResetEnrollment, ChainMiddleware(s.ResetEnrollmentHandler(), authed...))

	s.RegisterRouteHandler("GET "+RouteStatic, middleware.Compress(5)(ChainMiddleware(s.serveFileHandler(), s.CacheMiddleware)))
}

func logError(method, path, message string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+message+ResetColor)
}
