package server

import (
	"net/http"

	"github.com/jrsteele09/academy-portal/guard"
	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"github.com/jrsteele09/academy-portal/session"
	"github.com/rs/zerolog/log"
)

// Students log in through their own form, so the staff form only offers staff roles.
var staffRoles = []string{session.RoleAdmin, session.RoleFaculty}

// loginPageContent contains data for rendering the login page
type loginPageContent struct {
	Next        string
	StaffRoles  []string
	Staff       staffLoginForm
	Student     studentLoginForm
	FieldErrors map[string]string
}

func newLoginContent(next string) loginPageContent {
	return loginPageContent{
		Next:       guard.SafeNext(next),
		StaffRoles: staffRoles,
		Staff:      staffLoginForm{Role: session.RoleFaculty},
	}
}

// LoginPageUIHandler displays the login page (GET /login)
func (s *Server) LoginPageUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s.render(w, r, http.StatusOK, pageLogin, "Log in", newLoginContent(q.Get("next")), q.Get("error"))
	}
}

// LoginSubmissionHandler processes the staff login form (POST /login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := parseStaffLoginForm(r)
		if err != nil {
			s.render(w, r, http.StatusBadRequest, pageLogin, "Log in", newLoginContent(""), "The login form could not be read.")
			return
		}

		content := newLoginContent(r.PostForm.Get("next"))
		content.Staff = staffLoginForm{Username: form.Username, Role: form.Role}
		if errs := s.forms.Check(form); errs != nil {
			content.FieldErrors = errs
			s.render(w, r, http.StatusUnprocessableEntity, pageLogin, "Log in", content, "")
			return
		}

		id, err := s.sessions.Login(r.Context(), session.LoginRequest{Username: form.Username, Password: form.Password, Role: form.Role})
		if err != nil {
			log.Info().Err(err).Str("role", form.Role).Msg("staff login failed")
			s.render(w, r, statusForError(err), pageLogin, "Log in", content, perrors.UserMessage(err))
			return
		}

		redirectSuccess(w, r, postLoginTarget(s.guard.Table(), id.Role, content.Next))
	}
}

// StudentLoginSubmissionHandler processes the student login form (POST /student-login)
func (s *Server) StudentLoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := parseStudentLoginForm(r)
		if err != nil {
			s.render(w, r, http.StatusBadRequest, pageLogin, "Log in", newLoginContent(""), "The login form could not be read.")
			return
		}

		content := newLoginContent(r.PostForm.Get("next"))
		content.Student = form
		if errs := s.forms.Check(form); errs != nil {
			content.FieldErrors = errs
			s.render(w, r, http.StatusUnprocessableEntity, pageLogin, "Log in", content, "")
			return
		}

		id, err := s.sessions.StudentLogin(r.Context(), form.EnrollmentID, form.DateOfBirth)
		if err != nil {
			log.Info().Err(err).Msg("student login failed")
			s.render(w, r, statusForError(err), pageLogin, "Log in", content, perrors.UserMessage(err))
			return
		}

		redirectSuccess(w, r, postLoginTarget(s.guard.Table(), id.Role, content.Next))
	}
}

// LogoutHandler ends the session in any state and returns to the login page.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessions.Logout(r.Context()); err != nil {
			log.Err(err).Msg("failed to clear stored session on logout")
		}
		redirectWithNotice(w, r, RouteLogin, "You have been logged out.")
	}
}
