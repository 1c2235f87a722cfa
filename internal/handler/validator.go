package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/status"
)

// Validator adapts go-playground/validator to echo.Validator.  Field names
// in errors are the JSON names.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error { return cv.v.Struct(i) }

// validationOutcome reports MissingRequiredField when any required rule
// failed, InputValidationFailed otherwise.
func validationOutcome(ve validator.ValidationErrors) (status.Outcome, string) {
	var missing, invalid []string
	for _, fe := range ve {
		if strings.HasPrefix(fe.Tag(), "required") {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	if len(missing) > 0 {
		return status.MissingRequiredField, "missing required field: " + strings.Join(missing, ", ")
	}
	return status.InputValidationFailed, "invalid field: " + strings.Join(invalid, ", ")
}

// bind decodes the request into dst and validates it.  Decode failures are
// InputValidationFailed.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return invalidInput("invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return ve
		}
		return invalidInput(err.Error())
	}
	return nil
}
