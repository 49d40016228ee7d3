package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/clinic-service/internal/models"
)

// ErrValidation is matched by errors.Is for every ValidationErrors value
var ErrValidation = errors.New("validation failed")

// ValidationError describes one rejected field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

func (ve ValidationErrors) Unwrap() error {
	return ErrValidation
}

// Validator wraps go-playground/validator with the clinic rules registered
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// report json field names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	cv := &Validator{validate: v}
	cv.registerRules()
	return cv
}

// Validate returns nil or a ValidationErrors value
func (cv *Validator) Validate(s interface{}) error {
	err := cv.validate.Struct(s)
	if err == nil {
		return nil
	}
	return ToValidationErrors(err)
}

func (cv *Validator) registerRules() {
	cv.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).IsValid()
	})

	cv.validate.RegisterValidation("staff_role", func(fl validator.FieldLevel) bool {
		role := models.UserRole(fl.Field().String())
		return role == models.RoleSupervisor || role == models.RoleClinic
	})

	cv.validate.RegisterValidation("dashboard_view", func(fl validator.FieldLevel) bool {
		switch models.DashboardView(fl.Field().String()) {
		case models.ViewUsers, models.ViewRegister, models.ViewChat,
			models.ViewStations, models.ViewCodes, models.ViewPatients:
			return true
		}
		return false
	})

	// identifiers end up in room ids and redis keys
	cv.validate.RegisterValidation("record_id", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.ContainsAny(s, " \t\n_/:*")
	})
}

func ToValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: messageFor(fe),
			Value:   redact(fe),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("is out of range (%s %s)", fe.Tag(), fe.Param())
	case "user_role":
		return "must be one of admin, supervisor, clinic"
	case "staff_role":
		return "must be supervisor or clinic"
	case "dashboard_view":
		return "is not a known dashboard view"
	case "record_id":
		return "must be non-empty and must not contain spaces, '_', '/', ':' or '*'"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

func redact(fe validator.FieldError) interface{} {
	name := strings.ToLower(fe.Field())
	if strings.Contains(name, "password") || strings.Contains(name, "answer") {
		return nil
	}
	return fe.Value()
}
