// Package validation provides request validation using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/works-s/postsmith/internal/catalog"
	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the catalog and schedule tags registered.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "season", catalogTag(catalog.KindSeason))
	mustRegister(v, "purpose", catalogTag(catalog.KindPurpose))
	mustRegister(v, "tone", catalogTag(catalog.KindTone))
	mustRegister(v, "isodate", layoutTag(domain.DateLayout))
	mustRegister(v, "hhmm", layoutTag(domain.TimeLayout))

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func catalogTag(kind catalog.Kind) validator.Func {
	return func(fl validator.FieldLevel) bool {
		_, ok := catalog.Lookup(kind, fl.Field().String())
		return ok
	}
}

// layoutTag accepts only values that round-trip through the layout, so
// "9:05" and "2026-5-1" are rejected in favor of the zero-padded forms.
func layoutTag(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		t, err := time.Parse(layout, s)
		return err == nil && t.Format(layout) == s
	}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "season":
		return "must be one of: " + strings.Join(catalog.IDs(catalog.KindSeason), " ")
	case "purpose":
		return "must be one of: " + strings.Join(catalog.IDs(catalog.KindPurpose), " ")
	case "tone":
		return "must be one of: " + strings.Join(catalog.IDs(catalog.KindTone), " ")
	case "isodate":
		return "must be a date in YYYY-MM-DD form"
	case "hhmm":
		return "must be a time in HH:MM form"
	default:
		return "is invalid"
	}
}
