// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/extract"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError is a single field validation failure.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the parameter name that failed validation.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the parameter for the validation tag (e.g., "100" for "max=100").
func (e *ValidationError) Param() string { return e.param }

// Value returns the actual value that failed validation.
func (e *ValidationError) Value() interface{} { return e.value }

// Error returns a human-readable error message.
func (e *ValidationError) Error() string { return e.message }

// RequestValidationError is a collection of validation errors.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the slice of validation errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface, returning a combined error message.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}

	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ToAppError converts the failures into a ValidationError for the API.
func (ve *RequestValidationError) ToAppError() *apperr.Error {
	if len(ve.errors) == 0 {
		return apperr.Validation("validation failed", nil)
	}

	if len(ve.errors) == 1 {
		err := ve.errors[0]
		return apperr.Validation(err.message, map[string]interface{}{
			"field": err.field,
			"tag":   err.tag,
			"value": err.value,
		})
	}

	fields := make([]map[string]interface{}, len(ve.errors))
	for i, err := range ve.errors {
		fields[i] = map[string]interface{}{
			"field":   err.field,
			"tag":     err.tag,
			"message": err.message,
		}
	}
	return apperr.Validation(ve.Error(), map[string]interface{}{"fields": fields})
}

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})

		//nolint:errcheck // registration only fails for an empty tag
		validate.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
			_, ok := extract.NormalizeYearMonth(fl.Field().String())
			return ok
		})
	})

	return validate
}

// ValidateStruct validates a struct using the singleton validator.
// Returns nil if validation passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{
				field:   "unknown",
				tag:     "unknown",
				message: err.Error(),
			}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

// errorMessageTemplates maps validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required":  "%s is required",
	"yearmonth": "%s must be a year and month such as 2024-01",
}

// errorMessageWithParam maps validation tags to templates that include param.
var errorMessageWithParam = map[string]string{
	"oneof":            "%s must be one of: %s",
	"gte":              "%s must be greater than or equal to %s",
	"lte":              "%s must be less than or equal to %s",
	"required_with":    "%s is required together with %s",
	"excluded_with":    "%s cannot be combined with %s",
	"required_without": "%s is required without %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	return translateMinMax(fe, field, tag, param)
}

// translateMinMax handles min/max validation with type-specific messages.
func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	isString := fe.Kind() == reflect.String

	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
