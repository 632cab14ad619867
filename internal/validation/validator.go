// Package validation wraps go-playground/validator and converts its errors
// into the module's ValidationError type.
package validation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/jzx17/gohttp/pkg/types"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		if err := validate.RegisterValidation("http_status", validateStatusCode); err != nil {
			panic(fmt.Sprintf("validation: register http_status: %v", err))
		}
	})
	return validate
}

// Struct validates s and returns the first field failure as a
// *types.ValidationError wrapping types.ErrInvalidConfig.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return types.NewValidationError(fe.Namespace(), fmt.Sprintf("%v", fe.Value()),
			fmt.Errorf("%w: %s", types.ErrInvalidConfig, message(fe)))
	}
	return fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "http_status":
		return fmt.Sprintf("%s must be an HTTP status code", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func validateStatusCode(fl validator.FieldLevel) bool {
	code := fl.Field().Int()
	return code >= 100 && code <= 599
}
