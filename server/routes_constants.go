package server

// Route path constants
// All portal routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex   = "/"
	RouteHealthz = "/healthz"

	// Auth Routes - Login & Logout
	RouteLogin        = "/login"
	RouteStudentLogin = "/student-login"
	RouteLogout       = "/logout"

	// Public catalog
	RouteExploreCourses   = "/explore/courses"
	RouteExploreCourse    = "/explore/courses/{courseID}"
	RouteExploreWorkshops = "/explore/workshops"

	RouteExploreWorkshopRegister = "/explore/workshops/{workshopID}/register"

	// Role areas. Each role's resource views hang off its home as /{role}/{view}.
	RouteAdminHome   = "/admin"
	RouteFacultyHome = "/faculty"
	RouteStudentHome = "/student"
	RouteRoleView    = "/{view}"

	// Faculty enrollment
	RouteFacultyNewStudent      = "/faculty/students/new"
	RouteFacultyResetEnrollment = "/faculty/students/reset-enrollment"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/*"
)
