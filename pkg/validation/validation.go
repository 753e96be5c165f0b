// Package validation wraps go-playground/validator with the KYC submission
// schema rules and converts its failures into domain errors carrying
// field-level detail.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "yatri/pkg/domain-errors"
	s "yatri/pkg/string"
)

var defaultValidator = newValidator()

var subjectAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("subject_address", func(fl validator.FieldLevel) bool {
		return subjectAddressPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("iso_date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	return v
}

// Validate validates a struct and returns a validation domain error listing
// every failed field. No partial processing happens on failure; callers stop
// at the first Validate error.
func Validate(req any) error {
	err := defaultValidator.Struct(req)
	if err == nil {
		return nil
	}
	fields := FieldErrors(err)
	if len(fields) == 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid request body")
	}
	return dErrors.NewValidation(fields[0].Message, fields)
}

// FieldErrors converts a validator error into per-field messages with
// snake_cased field names.
func FieldErrors(err error) []dErrors.FieldError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	out := make([]dErrors.FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fieldName := fe.Field()
		if fieldName == "" {
			fieldName = fe.StructField()
		}
		field := s.ToSnakeCase(fieldName)
		out = append(out, dErrors.FieldError{Field: field, Message: message(field, fe)})
	}
	return out
}

func message(field string, fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "notblank":
		return fmt.Sprintf("%s cannot be blank", field)
	case "subject_address":
		return fmt.Sprintf("%s must be a 0x-prefixed 40-hex-digit address", field)
	case "iso_date":
		return fmt.Sprintf("%s must be an ISO date (YYYY-MM-DD)", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s long", field, fe.Param())
	case "dive":
		return fmt.Sprintf("%s contains an invalid element", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
