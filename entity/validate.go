package entity

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type checker interface {
	check() error
}

// Validate runs the struct tag rules and the per-type checks of e.
func Validate(e Entity) error {
	if got := e.Common().Type; got != e.EntityType() {
		return fmt.Errorf("type %q does not match %q", got, e.EntityType())
	}
	if err := validate.Struct(e); err != nil {
		return formatValidationError(err)
	}
	if c, ok := e.(checker); ok {
		return c.check()
	}
	return nil
}

func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fieldErrorMessage(fe))
	}
	return fmt.Errorf("%s", strings.Join(messages, "; "))
}

func fieldErrorMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a URL", field)
	case "base64":
		return fmt.Sprintf("%s must be base64", field)
	case "eq":
		return fmt.Sprintf("%s must be %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
