// Package validation wraps go-playground/validator with the formats the
// appointment API accepts and turns failures into httperr field errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dentflow/dentflow/internal/platform/httperr"
)

const (
	DateLayout = "02.01.2006"
	TimeLayout = "15:04"
)

var (
	priceRe   = regexp.MustCompile(`^\d{1,10}([.,]\d{1,2})?$`)
	dentNumRe = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z.\- ]{0,15}$`)
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared, configured validator.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		must(v.RegisterValidation("ddmmyyyy", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(DateLayout, fl.Field().String())
			return err == nil
		}))
		must(v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			_, err := time.Parse(TimeLayout, s)
			return err == nil && len(s) == len(TimeLayout)
		}))
		must(v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
			return priceRe.MatchString(fl.Field().String())
		}))
		must(v.RegisterValidation("dentnum", func(fl validator.FieldLevel) bool {
			return dentNumRe.MatchString(fl.Field().String())
		}))
		validate = v
	})
	return validate
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Struct validates s and returns nil or an *httperr.Error carrying one
// FieldError per failed rule.
func Struct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return httperr.Validation(FieldErrors(verrs))
}

func FieldErrors(verrs validator.ValidationErrors) []httperr.FieldError {
	out := make([]httperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, httperr.FieldError{Field: fe.Field(), Error: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		return fmt.Sprintf("must not exceed %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "ddmmyyyy":
		return "must be a date in DD.MM.YYYY format"
	case "hhmm":
		return "must be a time in HH:mm format"
	case "price":
		return "must be an amount like 1500 or 1500.50"
	case "dentnum":
		return "must be a tooth number of up to 16 letters, digits, dots or dashes"
	case "required_without_all":
		return "at least one field must be provided"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s:%s", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
