package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, err := range v {
		if err.Param != "" {
			parts[i] = err.Field + " failed on " + err.Tag + "=" + err.Param
		} else {
			parts[i] = err.Field + " failed on " + err.Tag
		}
	}
	return strings.Join(parts, "; ")
}

// Fields flattens the failures into field -> rule, suitable for API error details.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, err := range v {
		rule := err.Tag
		if err.Param != "" {
			rule += "=" + err.Param
		}
		out[err.Field] = rule
	}
	return out
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s interface{}) error {
	err := Engine().Struct(s)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok {
		failures := make(ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			failures = append(failures, ValidationError{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
			})
		}
		return failures
	}

	return err
}

// RegisterValidation exposes underlying validator custom rules.
func RegisterValidation(tag string, fn validator.Func) error {
	return Engine().RegisterValidation(tag, fn)
}

// Engine returns the shared validator instance with the domain rules registered.
func Engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := fld.Tag.Get(tag)
				if comma := strings.Index(name, ","); comma != -1 {
					name = name[:comma]
				}
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
		_ = validate.RegisterValidation("iata", validateIATA)
		_ = validate.RegisterValidation("airline", validateAirline)
	})
	return validate
}

// iata: three-letter airport code, case-insensitive.
func validateIATA(fl validator.FieldLevel) bool {
	return isCode(fl.Field().String(), 3, false)
}

// airline: two-character carrier designator, letters or digits.
func validateAirline(fl validator.FieldLevel) bool {
	return isCode(fl.Field().String(), 2, true)
}

func isCode(value string, length int, allowDigits bool) bool {
	if len(value) != length {
		return false
	}
	for _, ch := range strings.ToUpper(value) {
		switch {
		case ch >= 'A' && ch <= 'Z':
		case allowDigits && ch >= '0' && ch <= '9':
		default:
			return false
		}
	}
	return true
}
