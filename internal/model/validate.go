package model

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so messages match request bodies.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return s != ""
	})
	_ = v.RegisterValidation("specialty", func(fl validator.FieldLevel) bool {
		return IsSpecialty(fl.Field().String())
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("clinicdate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks a Patient, Doctor or Appointment against its field rules.
// The sync manager never calls it: callers validate input before handing it
// over.
func Validate(rec any) error {
	return validate.Struct(rec)
}

// FieldErrors turns a [Validate] error into a field → message map. It returns
// nil for errors that did not come from field validation.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = field + " is required"
		case "email":
			out[field] = field + " must be a valid email address"
		case "len":
			out[field] = field + " must be exactly " + e.Param() + " characters"
		case "max":
			out[field] = field + " must be at most " + e.Param() + " characters"
		case "digits":
			out[field] = field + " must contain only digits"
		case "gt":
			out[field] = field + " must reference an existing record"
		case "specialty":
			out[field] = field + " must be one of: " + strings.Join(Specialties, ", ")
		case "status":
			out[field] = field + " must be Pending, Confirmed, Completed or Cancelled"
		case "clinicdate":
			out[field] = field + " must be a date in dd/MM/yyyy format"
		case "datetime":
			out[field] = field + " must be a time in HH:mm format"
		default:
			out[field] = field + " is invalid"
		}
	}
	return out
}
