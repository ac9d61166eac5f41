package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/academy-portal/credentials"
	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"github.com/jrsteele09/academy-portal/internal/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	endpointBatches       = "batches/"
	endpointCreateStudent = "create-student/"

	enrollmentTitle = "Enroll Student"
	studentsView    = RouteFacultyHome + "/students"
)

type selectOption struct {
	Value string
	Label string
}

type enrollmentContent struct {
	Form        enrollmentForm
	Courses     []selectOption
	Batches     []selectOption
	FieldErrors map[string]string
}

// EnrollmentFormHandler shows the create-student form with the next enrollment id proposed.
func (s *Server) EnrollmentFormHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content := enrollmentContent{}
		next, err := credentials.NextEnrollmentID(r.Context(), s.creds)
		if err != nil {
			log.Err(err).Msg("failed to read enrollment counter")
		}
		content.Form.EnrollmentID = next

		if err := s.loadEnrollmentOptions(r.Context(), &content); err != nil {
			s.renderViewError(w, r, pageEnrollment, enrollmentTitle, content, err)
			return
		}
		s.render(w, r, http.StatusOK, pageEnrollment, enrollmentTitle, content, "")
	}
}

// EnrollmentSubmissionHandler creates the student on the backend and advances the counter.
func (s *Server) EnrollmentSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := parseEnrollmentForm(r)
		if err != nil {
			s.render(w, r, http.StatusBadRequest, pageEnrollment, enrollmentTitle, enrollmentContent{}, "The enrollment form could not be read.")
			return
		}

		content := enrollmentContent{Form: form}
		content.Form.Password = ""
		if err := s.loadEnrollmentOptions(r.Context(), &content); err != nil {
			log.Warn().Err(err).Msg("enrollment options unavailable")
		}

		if errs := s.forms.Check(form); errs != nil {
			content.FieldErrors = errs
			s.render(w, r, http.StatusUnprocessableEntity, pageEnrollment, enrollmentTitle, content, "")
			return
		}

		if _, err := s.api.Post(r.Context(), endpointCreateStudent, form); err != nil {
			s.renderViewError(w, r, pageEnrollment, enrollmentTitle, content, err)
			return
		}

		if err := credentials.RecordEnrollmentID(r.Context(), s.creds, form.EnrollmentID); err != nil {
			log.Err(err).Str("enrollment_id", form.EnrollmentID).Msg("failed to record enrollment id")
		}
		log.Info().Str("enrollment_id", form.EnrollmentID).Msg("student enrolled")
		redirectWithNotice(w, r, studentsView, "Student "+form.Username+" enrolled as "+form.EnrollmentID+".")
	}
}

// ResetEnrollmentHandler rewinds the enrollment counter so the next proposal is MIRA0001.
func (s *Server) ResetEnrollmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := credentials.ResetEnrollmentID(r.Context(), s.creds); err != nil {
			log.Err(err).Msg("failed to reset enrollment counter")
			s.render(w, r, http.StatusInternalServerError, pageEnrollment, enrollmentTitle, enrollmentContent{}, "The enrollment counter could not be reset.")
			return
		}
		redirectWithNotice(w, r, RouteFacultyNewStudent, "Enrollment counter reset.")
	}
}

// loadEnrollmentOptions fills the course and batch pickers. Both are read even when one fails;
// the first failure is returned.
func (s *Server) loadEnrollmentOptions(ctx context.Context, content *enrollmentContent) error {
	var g errgroup.Group
	var courseErr, batchErr error
	g.Go(func() error {
		content.Courses, courseErr = s.fetchOptions(ctx, endpointCourses, "title")
		return nil
	})
	g.Go(func() error {
		content.Batches, batchErr = s.fetchOptions(ctx, endpointBatches, "name")
		return nil
	})
	_ = g.Wait()
	if courseErr != nil {
		return perrors.Wrapf(courseErr, "[server loadEnrollmentOptions] courses")
	}
	if batchErr != nil {
		return perrors.Wrapf(batchErr, "[server loadEnrollmentOptions] batches")
	}
	return nil
}

func (s *Server) fetchOptions(ctx context.Context, endpoint, labelKey string) ([]selectOption, error) {
	rows, err := s.fetchRows(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	options := make([]selectOption, 0, len(rows))
	for _, row := range rows {
		value := utils.CellText(row["id"])
		if value == "" {
			continue
		}
		options = append(options, selectOption{Value: value, Label: firstText(row, labelKey, value)})
	}
	return options, nil
}
