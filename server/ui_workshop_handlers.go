package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/academy-portal/apiclient"
	"github.com/jrsteele09/academy-portal/internal/utils"
	"github.com/rs/zerolog/log"
)

const (
	endpointWorkshopRegistrations = "workshop-registrations/"

	registrationPending = "pending"
)

var experienceLevels = []string{"beginner", "intermediate", "advanced"}

type workshopRegistrationContent struct {
	WorkshopID       int
	Title            string
	Date             string
	Time             string
	Form             workshopRegistrationForm
	ExperienceLevels []string
	FieldErrors      map[string]string
}

// workshopRegistration is the body posted to the backend.
type workshopRegistration struct {
	workshopRegistrationForm
	WorkshopID    int    `json:"workshop_id"`
	WorkshopTitle string `json:"workshop_title"`
	Status        string `json:"status"`
}

func newWorkshopRegistrationContent(id int, workshop map[string]any) workshopRegistrationContent {
	return workshopRegistrationContent{
		WorkshopID:       id,
		Title:            firstText(workshop, "title", "Workshop"),
		Date:             utils.CellText(workshop["date"]),
		Time:             utils.CellText(workshop["time"]),
		Form:             workshopRegistrationForm{ExperienceLevel: experienceLevels[0]},
		ExperienceLevels: experienceLevels,
	}
}

// WorkshopRegistrationFormHandler shows the sign-up form for one public workshop.
func (s *Server) WorkshopRegistrationFormHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, ok := s.loadWorkshop(w, r)
		if !ok {
			return
		}
		s.render(w, r, http.StatusOK, pageWorkshopRegistration, "Register for "+content.Title, content, "")
	}
}

// WorkshopRegistrationSubmissionHandler posts a registration to the backend. No login is needed.
func (s *Server) WorkshopRegistrationSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := parseWorkshopRegistrationForm(r)
		if err != nil {
			s.render(w, r, http.StatusBadRequest, pageWorkshopRegistration, "Register", workshopRegistrationContent{}, "The registration form could not be read.")
			return
		}

		content, ok := s.loadWorkshop(w, r)
		if !ok {
			return
		}
		content.Form = form
		title := "Register for " + content.Title

		if errs := s.forms.Check(form); errs != nil {
			content.FieldErrors = errs
			s.render(w, r, http.StatusUnprocessableEntity, pageWorkshopRegistration, title, content, "")
			return
		}

		registration := workshopRegistration{
			workshopRegistrationForm: form,
			WorkshopID:               content.WorkshopID,
			WorkshopTitle:            content.Title,
			Status:                   registrationPending,
		}
		if _, err := s.api.Post(r.Context(), endpointWorkshopRegistrations, registration, apiclient.WithoutAuth()); err != nil {
			s.renderViewError(w, r, pageWorkshopRegistration, title, content, err)
			return
		}

		log.Info().Int("workshop_id", content.WorkshopID).Msg("workshop registration submitted")
		redirectWithNotice(w, r, RouteExploreWorkshops, "Thank you for registering for "+content.Title+".")
	}
}

// loadWorkshop finds the workshop named by the route among the public listing. When it returns
// false the response has already been written.
func (s *Server) loadWorkshop(w http.ResponseWriter, r *http.Request) (workshopRegistrationContent, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "workshopID"))
	if err != nil || id <= 0 {
		s.NotFoundHandler()(w, r)
		return workshopRegistrationContent{}, false
	}

	rows, err := s.fetchRows(r.Context(), endpointWorkshops, apiclient.WithoutAuth())
	if err != nil {
		s.renderViewError(w, r, pageWorkshopRegistration, "Register", workshopRegistrationContent{}, err)
		return workshopRegistrationContent{}, false
	}
	for _, row := range rows {
		if utils.CellText(row["id"]) == strconv.Itoa(id) {
			return newWorkshopRegistrationContent(id, row), true
		}
	}
	s.NotFoundHandler()(w, r)
	return workshopRegistrationContent{}, false
}
