package httpx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("strongpassword", strongPassword)
	return v
}

// strongPassword wants an upper, a lower, a digit and a symbol.
func strongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit, symbol bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

// FieldErrors maps a JSON field path to its messages.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) { fe[field] = append(fe[field], msg) }

// validateStruct returns nil when s is valid.
func validateStruct(s any) FieldErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"": {err.Error()}}
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		out.Add(fieldPath(fe.Namespace()), message(fe))
	}
	return out
}

// fieldPath drops the root struct name: "CreateOrderInput.customerInfo.email" -> "customerInfo.email".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s cannot be empty.", name)
	case "email":
		return fmt.Sprintf("%s is invalid.", name)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s.", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s.", name, fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries.", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters.", name, fe.Param())
	case "strongpassword":
		return "Password must contain an uppercase letter, a lowercase letter, a number and a special character."
	}
	return fmt.Sprintf("%s failed %s.", name, fe.Tag())
}
