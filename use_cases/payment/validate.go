package payment

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	domain "github.com/radlee/payments-api/domain/payment"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	// Decimals are validated by sign, which is exact at any scale.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.Sign()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterValidation("positive", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() > 0
	})
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validate reports every violation of req, not just the first one.
func validate(v *validator.Validate, req domain.Request) []string {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	violations := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "notblank":
			violations = append(violations, fmt.Sprintf("%s is required", fe.Field()))
		case "positive":
			violations = append(violations, fmt.Sprintf("%s must be greater than 0", fe.Field()))
		default:
			violations = append(violations, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return violations
}
