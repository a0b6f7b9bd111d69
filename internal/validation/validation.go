// Package validation turns struct tag rules into field-level form errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

var (
	// PhonePattern accepts Ukrainian numbers in international format.
	PhonePattern    = regexp.MustCompile(`^\+380\d{9}$`)
	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)
)

// NonField collects errors that belong to the form as a whole.
const NonField = "__all__"

// Errors maps a form field to its messages. An empty Errors is not an error.
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// First returns the first message for field, or "".
func (e Errors) First(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e[field], " "))
	}
	return strings.Join(parts, "; ")
}

// Err returns nil when there are no messages, so callers can return it directly.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// As extracts Errors from err.
func As(err error) (Errors, bool) {
	var verrs Errors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}

// Field returns an Errors holding a single message.
func Field(field, message string) Errors {
	return Errors{field: {message}}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report errors under the html form name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("phone_ua", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Struct validates v against its `validate` tags.
func Struct(v any) Errors {
	errs := Errors{}

	err := validate.Struct(v)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add(NonField, err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "phone_ua":
		return "Phone number must be entered in the format: +380xxxxxxxxx."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "eqfield":
		return "The two password fields didn't match."
	case "oneof":
		return fmt.Sprintf("Select one of: %s.", fe.Param())
	case "gte", "lte", "numeric", "len":
		return "Enter a valid value."
	}
	return "Enter a valid value."
}

func ValidPhone(phone string) bool {
	return PhonePattern.MatchString(phone)
}

// NormalizeUsername trims surrounding space and applies NFKC, so visually identical
// names compare equal.
func NormalizeUsername(username string) string {
	return norm.NFKC.String(strings.TrimSpace(username))
}
