// Package forms validates registration and login input.
//
// Forms are plain structs bound from POST data; Validate returns the
// per-field errors, and an empty Errors value means the input is valid.
package forms

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	FieldUsername  = "username"
	FieldEmail     = "email"
	FieldPassword  = "password"
	FieldPassword1 = "password1"
	FieldPassword2 = "password2"
	// FieldAll holds errors that belong to no single field.
	FieldAll = "__all__"

	MaxUsernameLength = 150
	MinPasswordLength = 8
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("notnumeric", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return strings.TrimLeft(s, "0123456789") != ""
		})
		validate = v
	})
	return validate
}

// Errors maps a field name to its validation messages.
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Get returns the first message for field, or "".
func (e Errors) Get(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (e Errors) Valid() bool {
	return len(e) == 0
}

// RegistrationForm carries the sign-up fields.
type RegistrationForm struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"required,email"`
	Password1 string `form:"password1" validate:"required,min=8,notnumeric"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

// Validate normalises the identity fields and checks every rule.
func (f *RegistrationForm) Validate() Errors {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	return collect(getValidator().Struct(f))
}

// LoginForm carries the sign-in fields. It only checks presence; credentials
// are verified by the user service.
type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

func (f *LoginForm) Validate() Errors {
	f.Username = strings.TrimSpace(f.Username)
	return collect(getValidator().Struct(f))
}

func collect(err error) Errors {
	errs := Errors{}
	if err == nil {
		return errs
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		errs.Add(FieldAll, err.Error())
		return errs
	}
	for _, fe := range validationErrors {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return "Ensure this value has at most " + fe.Param() + " characters."
	case "min":
		return "This password is too short. It must contain at least " + fe.Param() + " characters."
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "notnumeric":
		return "This password is entirely numeric."
	case "eqfield":
		return "The two password fields didn't match."
	default:
		return "Enter a valid value."
	}
}
