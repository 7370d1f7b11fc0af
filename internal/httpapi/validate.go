package httpapi

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"toolrental/internal/apperror"
)

var validate = newValidator()

// rutPattern matches a Chilean national id: 7 or 8 digits, a dash, and a check digit or K.
var rutPattern = regexp.MustCompile(`^\d{7,8}-[\dkK]$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("rut", func(fl validator.FieldLevel) bool {
		return rutPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidationError carries per-field failures. It unwraps to apperror.ErrInvalidRequest.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperror.ErrInvalidRequest
}

// Validate runs the struct's validate tags.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", apperror.ErrInvalidRequest, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fmt.Sprintf("failed on '%s' tag", fe.Tag())
	}
	return &ValidationError{Fields: fields}
}
