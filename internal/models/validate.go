package models

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation on an entity at the store boundary.
// Failures come back as ValidationError so callers can distinguish bad
// input from store trouble.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return Validationf("field %s failed rule %q", fe.Namespace(), fe.Tag())
		}
		return Validationf("%v", err)
	}
	return nil
}
