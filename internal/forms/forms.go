// Package forms validates submitted HTML forms with go-playground/validator
// and turns failures into per-field messages for the templates.
package forms

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// NonFieldErrors is the Errors key for messages not tied to a single field.
const NonFieldErrors = "__all__"

var (
	slugPattern     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the custom rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		if err := RegisterCustomValidators(validate); err != nil {
			panic(err)
		}
	})
	return validate
}

type customRule struct {
	tag string
	fn  validator.Func
}

var customRules = []customRule{
	{"slug", ValidateSlugRule},
	{"username", ValidateUsernameRule},
	{"maxbytes", ValidateMaxBytesRule},
}

// RegisterCustomValidators adds the yanote rules to v.
func RegisterCustomValidators(v *validator.Validate) error {
	return registerRules(v, customRules)
}

func registerRules(v *validator.Validate, rules []customRule) error {
	for _, r := range rules {
		if err := v.RegisterValidation(r.tag, r.fn); err != nil {
			return fmt.Errorf("register %q rule: %w", r.tag, err)
		}
	}
	return nil
}

func ValidateSlugRule(fl validator.FieldLevel) bool {
	return slugPattern.MatchString(fl.Field().String())
}

func ValidateUsernameRule(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

func ValidateMaxBytesRule(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// Errors maps a form field name to its validation messages.
type Errors map[string][]string

// Add appends msg to field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Has reports whether field has any message.
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

// Any reports whether there is at least one message.
func (e Errors) Any() bool {
	for _, msgs := range e {
		if len(msgs) > 0 {
			return true
		}
	}
	return false
}

// Validate checks s against its validate tags. The result is never nil.
func Validate(s any) Errors {
	out := Errors{}
	err := Validator().Struct(s)
	if err == nil {
		return out
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out.Add(NonFieldErrors, "Enter a valid value.")
		return out
	}
	for _, fe := range verrs {
		out.Add(fe.Field(), Message(fe))
	}
	return out
}

// Message renders a single field error the way the templates show it.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters (it has %d).",
			fe.Param(), utf8.RuneCountInString(fieldString(fe)))
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters (it has %d).",
			fe.Param(), utf8.RuneCountInString(fieldString(fe)))
	case "maxbytes":
		return fmt.Sprintf("Ensure this value is at most %s bytes (it has %d).",
			fe.Param(), len(fieldString(fe)))
	case "email":
		return "Enter a valid email address."
	case "slug":
		return "Enter a valid “slug” consisting of letters, numbers, underscores or hyphens."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "eqfield":
		return "The two password fields didn’t match."
	default:
		return "Enter a valid value."
	}
}

func fieldString(fe validator.FieldError) string {
	s, _ := fe.Value().(string)
	return s
}
