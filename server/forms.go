package server

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/jrsteele09/academy-portal/credentials"
)

const (
	dateLayout = "2006-01-02"

	// custom validation tags
	notBlankTag     = "notblank"
	enrollmentIDTag = "enrollment_id"
	isoDateTag      = "isodate"
)

// staffLoginForm is the POST /login body.
type staffLoginForm struct {
	Username string `form:"username" validate:"notblank"`
	Password string `form:"password" validate:"required"`
	Role     string `form:"role" validate:"required,oneof=admin faculty"`
}

// studentLoginForm is the POST /student-login body.
type studentLoginForm struct {
	EnrollmentID string `form:"enrollment_id" validate:"required,enrollment_id"`
	DateOfBirth  string `form:"date_of_birth" validate:"required,isodate"`
}

// enrollmentForm is the faculty "create student" form. It is posted to the backend as JSON.
type enrollmentForm struct {
	Username     string `form:"username" json:"username" validate:"notblank,max=150"`
	Email        string `form:"email" json:"email" validate:"required,email"`
	EnrollmentID string `form:"enrollment_id" json:"enrollment_id" validate:"required,enrollment_id"`
	DateOfBirth  string `form:"date_of_birth" json:"date_of_birth" validate:"required,isodate"`
	CourseID     string `form:"course_id" json:"course_id" validate:"required,numeric"`
	BatchID      string `form:"batch_id" json:"batch_id,omitempty" validate:"omitempty,numeric"`
	Password     string `form:"password" json:"password" validate:"required,min=6"`
}

// workshopRegistrationForm is the public workshop sign-up form.
type workshopRegistrationForm struct {
	Name                string `form:"name" json:"name" validate:"notblank,max=100"`
	Email               string `form:"email" json:"email" validate:"required,email"`
	Phone               string `form:"phone" json:"phone" validate:"required,numeric,min=10,max=15"`
	Education           string `form:"education" json:"education" validate:"max=200"`
	ExperienceLevel     string `form:"experience_level" json:"experience_level" validate:"required,oneof=beginner intermediate advanced"`
	SpecialRequirements string `form:"special_requirements" json:"special_requirements" validate:"max=500"`
}

type formValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newFormValidator() *formValidator {
	validate := validator.New()

	// Register the english error messages for validation errors.
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use form field names in errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = validate.RegisterValidation(enrollmentIDTag, enrollmentIDValidation)
	_ = validate.RegisterValidation(isoDateTag, isoDateValidation)

	fv := &formValidator{validate: validate, translator: translator}
	fv.registerCustomTranslations(notBlankTag, enrollmentIDTag, isoDateTag)
	return fv
}

// registerCustomTranslations registers messages for the custom tags. The default translations
// are already registered, so a noop registration func is passed.
func (fv *formValidator) registerCustomTranslations(tags ...string) {
	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range tags {
		_ = fv.validate.RegisterTranslation(tag, fv.translator, registerFn, translateCustomValidationErrs)
	}
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	case enrollmentIDTag:
		return fe.Field() + " must look like " + credentials.FormatEnrollmentID(1)
	case isoDateTag:
		return fe.Field() + " must be a date (YYYY-MM-DD)"
	default:
		return ""
	}
}

// Check validates form and returns translated messages keyed by form field name. The result
// is nil when the form is valid.
func (fv *formValidator) Check(form any) map[string]string {
	err := fv.validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(fv.translator)
	}
	return fields
}

func parseStaffLoginForm(r *http.Request) (staffLoginForm, error) {
	if err := r.ParseForm(); err != nil {
		return staffLoginForm{}, err
	}
	return staffLoginForm{
		Username: formValue(r, "username"),
		Password: r.PostForm.Get("password"),
		Role:     formValue(r, "role"),
	}, nil
}

func parseStudentLoginForm(r *http.Request) (studentLoginForm, error) {
	if err := r.ParseForm(); err != nil {
		return studentLoginForm{}, err
	}
	return studentLoginForm{
		EnrollmentID: formValue(r, "enrollment_id"),
		DateOfBirth:  formValue(r, "date_of_birth"),
	}, nil
}

func parseEnrollmentForm(r *http.Request) (enrollmentForm, error) {
	if err := r.ParseForm(); err != nil {
		return enrollmentForm{}, err
	}
	return enrollmentForm{
		Username:     formValue(r, "username"),
		Email:        formValue(r, "email"),
		EnrollmentID: formValue(r, "enrollment_id"),
		DateOfBirth:  formValue(r, "date_of_birth"),
		CourseID:     formValue(r, "course_id"),
		BatchID:      formValue(r, "batch_id"),
		Password:     r.PostForm.Get("password"),
	}, nil
}

func parseWorkshopRegistrationForm(r *http.Request) (workshopRegistrationForm, error) {
	if err := r.ParseForm(); err != nil {
		return workshopRegistrationForm{}, err
	}
	return workshopRegistrationForm{
		Name:                formValue(r, "name"),
		Email:               formValue(r, "email"),
		Phone:               formValue(r, "phone"),
		Education:           formValue(r, "education"),
		ExperienceLevel:     formValue(r, "experience_level"),
		SpecialRequirements: formValue(r, "special_requirements"),
	}, nil
}

// formValue reads a POST field with surrounding whitespace removed. Passwords are read raw.
func formValue(r *http.Request, name string) string {
	return strings.TrimSpace(r.PostForm.Get(name))
}

// Custom Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func enrollmentIDValidation(fl validator.FieldLevel) bool {
	_, err := credentials.ParseEnrollmentID(fl.Field().String())
	return err == nil
}

func isoDateValidation(fl validator.FieldLevel) bool {
	_, err := time.Parse(dateLayout, fl.Field().String())
	return err == nil
}
