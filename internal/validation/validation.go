package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error describes a single invalid or missing input field. Its message is
// safe to return to clients.
type Error struct {
	Field   string
	Message string
}

func (e Error) Error() string {
	return e.Message
}

// Missing reports a required field that was not supplied.
func Missing(field string) Error {
	return Error{Field: field, Message: fmt.Sprintf("%s is required", field)}
}

// Invalid reports a supplied field whose value is unacceptable.
func Invalid(field, reason string) Error {
	return Error{Field: field, Message: fmt.Sprintf("%s %s", field, reason)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Struct checks the `validate` tags of v and converts the first failure into
// an Error named after the field's JSON key.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate: %w", err)
	}
	return fromFieldError(fieldErrs[0].Field(), fieldErrs[0])
}

// Var checks a single value against tag, reporting failures under field.
// Partial updates use it to validate only the keys a client sent.
func Var(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate %s: %w", field, err)
	}
	return fromFieldError(field, fieldErrs[0])
}

func fromFieldError(field string, fe validator.FieldError) Error {
	switch fe.Tag() {
	case "required":
		return Missing(field)
	case "email":
		return Invalid(field, "must be a valid email address")
	case "oneof":
		return Invalid(field, "must be one of: "+strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return Invalid(field, "must be greater than "+fe.Param())
	case "min":
		return Invalid(field, "must be at least "+fe.Param()+" characters")
	case "max":
		return Invalid(field, "must be at most "+fe.Param()+" characters")
	default:
		return Invalid(field, "is invalid")
	}
}
