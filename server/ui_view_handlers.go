package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/academy-portal/apiclient"
	"github.com/jrsteele09/academy-portal/guard"
	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"github.com/jrsteele09/academy-portal/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// dashboardFetchLimit bounds the concurrent listing requests behind one dashboard.
	dashboardFetchLimit = 4

	endpointCourses       = "courses/courses/"
	endpointWorkshops     = "workshops/"
	endpointAdminOverview = "dashboard/"
)

type tableContent struct {
	Columns    []Column
	Rows       []map[string]any
	LinkPrefix string
	LinkSuffix string
	Empty      string
}

type detailField struct {
	Label string
	Value string
}

type detailContent struct {
	Fields []detailField
	Back   string
}

type dashboardStat struct {
	Label string
	Value string
}

type dashboardContent struct {
	Username string
	Role     string
	Stats    []dashboardStat
	Links    []navLink
}

var courseDetailFields = []Column{
	{Key: "title", Label: "Course"},
	{Key: "category", Label: "Category"},
	{Key: "level", Label: "Level"},
	{Key: "duration", Label: "Duration"},
	{Key: "price", Label: "Price"},
	{Key: "instructor", Label: "Instructor"},
	{Key: "description", Label: "Description"},
}

// ExploreCoursesHandler lists the public course catalog.
func (s *Server) ExploreCoursesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content := tableContent{Columns: courseColumns, LinkPrefix: RouteExploreCourses + "/", Empty: "No courses are published yet."}
		rows, err := s.fetchRows(r.Context(), endpointCourses, apiclient.WithoutAuth())
		if err != nil {
			s.renderViewError(w, r, pageTable, "Courses", content, err)
			return
		}
		content.Rows = rows
		s.render(w, r, http.StatusOK, pageTable, "Courses", content, "")
	}
}

// ExploreCourseHandler shows one public course.
func (s *Server) ExploreCourseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "courseID"))
		if err != nil || id <= 0 {
			s.NotFoundHandler()(w, r)
			return
		}

		content := detailContent{Back: RouteExploreCourses}
		var course map[string]any
		resp, err := s.api.Get(r.Context(), fmt.Sprintf("%s%d/", endpointCourses, id), apiclient.WithoutAuth())
		if err == nil {
			err = decodeJSON(resp.Body, &course)
		}
		if err != nil {
			s.renderViewError(w, r, pageDetail, "Course", content, err)
			return
		}

		content.Fields = detailFields(course, courseDetailFields)
		s.render(w, r, http.StatusOK, pageDetail, firstText(course, "title", "Course"), content, "")
	}
}

// ExploreWorkshopsHandler lists the public workshops.
func (s *Server) ExploreWorkshopsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content := tableContent{
			Columns:    workshopColumns,
			LinkPrefix: RouteExploreWorkshops + "/",
			LinkSuffix: "/register",
			Empty:      "No workshops are scheduled.",
		}
		rows, err := s.fetchRows(r.Context(), endpointWorkshops, apiclient.WithoutAuth())
		if err != nil {
			s.renderViewError(w, r, pageTable, "Workshops", content, err)
			return
		}
		content.Rows = rows
		s.render(w, r, http.StatusOK, pageTable, "Workshops", content, "")
	}
}

// DashboardHandler renders a role's home: a tile per resource view and a record count for each.
// A listing that fails leaves its figure blank; the page still renders.
func (s *Server) DashboardHandler(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shell, _ := guard.ShellFromContext(r.Context())
		views := roleViews[role]
		content := dashboardContent{
			Username: shell.Username(),
			Role:     role,
			Stats:    make([]dashboardStat, len(views)),
		}
		for _, link := range sidebarFor(role, r.URL.Path) {
			if link.Href != guard.HomePath(role) {
				content.Links = append(content.Links, link)
			}
		}

		errs := make([]error, len(views))
		g, ctx := errgroup.WithContext(r.Context())
		g.SetLimit(dashboardFetchLimit)
		for i, view := range views {
			content.Stats[i] = dashboardStat{Label: view.Title, Value: "-"}
			g.Go(func() error {
				rows, err := s.fetchRows(ctx, view.Endpoint)
				if err != nil {
					errs[i] = err
					return nil
				}
				content.Stats[i].Value = strconv.Itoa(len(rows))
				return nil
			})
		}
		_ = g.Wait()

		banner := ""
		for _, err := range errs {
			if err == nil {
				continue
			}
			if perrors.Classify(err) == perrors.KindAuthExpired {
				s.sessionRejected(w, r)
				return
			}
			log.Warn().Err(err).Str("role", role).Msg("dashboard figure unavailable")
			banner = "Some figures could not be loaded. " + perrors.UserMessage(err)
		}

		if role == session.RoleAdmin {
			content.Stats = append(content.Stats, s.adminOverview(r.Context())...)
		}

		s.render(w, r, http.StatusOK, pageDashboard, "Dashboard", content, banner)
	}
}

// adminOverview reads the backend's numeric dashboard totals. It is best effort.
func (s *Server) adminOverview(ctx context.Context) []dashboardStat {
	var overview map[string]any
	resp, err := s.api.Get(ctx, endpointAdminOverview)
	if err == nil {
		err = decodeJSON(resp.Body, &overview)
	}
	if err != nil {
		log.Debug().Err(err).Msg("admin overview unavailable")
		return nil
	}
	var stats []dashboardStat
	for _, key := range sortedKeys(overview) {
		if n, ok := overview[key].(json.Number); ok {
			stats = append(stats, dashboardStat{Label: humanize(key), Value: n.String()})
		}
	}
	return stats
}

// ResourceViewHandler renders the table behind /{role}/{view}.
func (s *Server) ResourceViewHandler(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := findView(role, chi.URLParam(r, "view"))
		if !ok {
			s.NotFoundHandler()(w, r)
			return
		}

		content := tableContent{Columns: view.Columns, Empty: "Nothing to show yet."}
		rows, err := s.fetchRows(r.Context(), view.Endpoint)
		if err != nil {
			s.renderViewError(w, r, pageTable, view.Title, content, err)
			return
		}
		content.Rows = rows
		s.render(w, r, http.StatusOK, pageTable, view.Title, content, "")
	}
}

// renderViewError contains a failed backend read to the page it happened on. An expired
// session sends the user to log in and come back.
func (s *Server) renderViewError(w http.ResponseWriter, r *http.Request, page, title string, content any, err error) {
	if perrors.Classify(err) == perrors.KindAuthExpired {
		s.sessionRejected(w, r)
		return
	}
	log.Warn().Err(err).Str("path", r.URL.Path).Msg("view failed to load")
	s.render(w, r, statusForError(err), page, title, content, perrors.UserMessage(err))
}

// sessionRejected sends the user to log in after the backend refused the session even past a
// refresh. A session still reported as authenticated is ended first, otherwise the public shell
// would bounce the login page straight back to the role's home.
func (s *Server) sessionRejected(w http.ResponseWriter, r *http.Request) {
	if s.sessions.Snapshot().Authenticated() {
		log.Info().Str("path", r.URL.Path).Msg("backend rejected the session, logging out")
		if err := s.sessions.Logout(r.Context()); err != nil {
			log.Err(err).Msg("failed to clear rejected session")
		}
	}
	redirectSuccess(w, r, guard.LoginPath(r.URL.RequestURI()))
}

// statusForError picks the page status for a contained failure.
func statusForError(err error) int {
	switch perrors.Classify(err) {
	case perrors.KindNone:
		return http.StatusOK
	case perrors.KindTransient:
		return http.StatusServiceUnavailable
	case perrors.KindAuthExpired:
		return http.StatusUnauthorized
	case perrors.KindAuthorization:
		return http.StatusForbidden
	case perrors.KindValidation:
		if perrors.Is(err, perrors.ErrInvalidCredentials) {
			return http.StatusUnauthorized
		}
		if perrors.Is(err, perrors.ErrNotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// fetchRows reads a listing endpoint. The backend answers with a bare array, a paginated
// {"results": [...]} envelope or, for per-user endpoints, a single object.
func (s *Server) fetchRows(ctx context.Context, endpoint string, opts ...apiclient.RequestOption) ([]map[string]any, error) {
	resp, err := s.api.Get(ctx, endpoint, opts...)
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.Body)
}

func decodeRows(body []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var rows []map[string]any
		if err := decodeJSON(trimmed, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}

	var object map[string]any
	if err := decodeJSON(trimmed, &object); err != nil {
		return nil, err
	}
	results, ok := object["results"].([]any)
	if !ok {
		return []map[string]any{object}, nil
	}
	rows := make([]map[string]any, 0, len(results))
	for _, item := range results {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// decodeJSON keeps numbers as json.Number so ids and amounts render as sent.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("[server decodeJSON] %w: %v", perrors.ErrMalformedResponse, err)
	}
	return nil
}
