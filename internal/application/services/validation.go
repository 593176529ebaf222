package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/GX-mob/gx-service-template/internal/utils"
	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected field, named by its JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of checking a payload. Checks never panic
// or coerce; they only report.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Result: r}
}

type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Result.Errors))
	for i, fe := range e.Result.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

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
		return name
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return utils.CheckPassword(fl.Field().String()) == nil
	})
	return &Validator{v: v}
}

// Check validates payload against its struct tags.
func (v *Validator) Check(payload any) ValidationResult {
	err := v.v.Struct(payload)
	if err == nil {
		return ValidationResult{Valid: true}
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationResult{Errors: []FieldError{{Rule: "payload", Message: err.Error()}}}
	}
	res := ValidationResult{Errors: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		res.Errors = append(res.Errors, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return res
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i interface{}) error {
	return v.Check(i).Err()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "e164":
		return "must be a phone number in E.164 format"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "strongpassword":
		if err := utils.CheckPassword(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
	}
	return "failed on " + fe.Tag()
}
