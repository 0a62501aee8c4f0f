package auth

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// isLooseEmail accepts "x@y.z" shaped values without any whitespace. RE2 \s
// is ASCII only, so Unicode spaces and the BOM are rejected separately.
func isLooseEmail(value string) bool {
	if strings.IndexFunc(value, isEmailSpace) >= 0 {
		return false
	}
	return emailRegex.MatchString(value)
}

func isEmailSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// LoginForm is the login form as posted by the page. Login holds either the
// email or the profile name.
type LoginForm struct {
	Login      string `form:"email" json:"email" validate:"required"`
	Password   string `form:"password" json:"password" validate:"required"`
	RememberMe bool   `form:"remember_me" json:"rememberMe"`
}

// Normalize trims the login field. Passwords are never trimmed.
func (f *LoginForm) Normalize() {
	f.Login = strings.TrimSpace(f.Login)
}

type SignupForm struct {
	Email           string `form:"email" json:"email" validate:"required,looseemail"`
	Password        string `form:"password" json:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" json:"confirmPassword" validate:"required,eqfield=Password"`
	Name            string `form:"name" json:"name" validate:"required,min=2"`
}

func (f *SignupForm) Normalize() {
	f.Email = strings.TrimSpace(f.Email)
	f.Name = strings.TrimSpace(f.Name)
}

// field name -> validation tag -> message
type fieldMessages map[string]map[string]string

var loginMessages = fieldMessages{
	"email": {
		"required": "Please enter your email or username.",
	},
	"password": {
		"required": "Please enter your password.",
	},
}

var signupMessages = fieldMessages{
	"email": {
		"required":   "Please enter your email.",
		"looseemail": "Please enter a valid email address.",
	},
	"password": {
		"required": "Please create a password.",
		"min":      "Password must be at least 6 characters.",
	},
	"confirm_password": {
		"required": "Please confirm your password.",
		"eqfield":  "Passwords do not match.",
	},
	"name": {
		"required": "Please enter a profile name.",
		"min":      "Name must be at least 2 characters.",
	},
}

const (
	msgWrongCredentials = "Incorrect email or password."
	msgEmailTaken       = "This email is already registered."
)

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// cannot fail, the tag name is valid and the func is not nil
	_ = v.RegisterValidation("looseemail", func(fl validator.FieldLevel) bool {
		return isLooseEmail(fl.Field().String())
	})
	return v
}

// validateForm runs all field rules at once and returns the message of the
// first failing rule of every invalid field. Nil means the form is valid.
func validateForm(v *validator.Validate, form any, messages fieldMessages) (map[string]string, error) {
	err := v.Struct(form)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		msg, ok := messages[field][fe.Tag()]
		if !ok {
			msg = "Invalid " + field + "."
		}
		out[field] = msg
	}
	return out, nil
}
