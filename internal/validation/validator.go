// Package validation wraps go-playground/validator with the field naming and error
// messages used across the API. Errors are returned as models.ValidationErrors so the
// HTTP layer maps them to 400 without knowing about the validator library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"climate-records/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the singleton validator instance.
// Field names in errors come from the `param` tag, then the `json` tag, then the Go name.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"param", "json"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})

		// continent: value must be one of the fixed continent labels
		_ = validate.RegisterValidation("continent", func(fl validator.FieldLevel) bool {
			return models.IsContinent(fl.Field().String())
		})
	})

	return validate
}

// RegisterStructValidation registers a struct-level rule for cross-field constraints.
// Call it from package init so registration happens before any validation runs.
func RegisterStructValidation(fn validator.StructLevelFunc, types ...interface{}) {
	GetValidator().RegisterStructValidation(fn, types...)
}

// ValidateStruct validates s and returns nil or models.ValidationErrors.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return models.ValidationErrors{{Field: "unknown", Message: err.Error()}}
	}

	out := make(models.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &models.ValidationError{
			Field:   fe.Field(),
			Value:   fmt.Sprint(fe.Value()),
			Message: translateError(fe),
		})
	}
	return out
}

var errorMessageTemplates = map[string]string{
	"required":         "%s is required",
	"continent":        "%s is not a recognized continent; the request has an invalid entry",
	"iso3166_1_alpha3": "%s must be an ISO 3166-1 alpha-3 code",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
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
