package auth

import (
	"net/url"
	"strings"

	"github.com/kuitang/yanote/internal/forms"
)

// SignupForm is the account creation form.
type SignupForm struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"omitempty,email"`
	Password1 string `form:"password1" validate:"required,min=8"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

// SignupFormFromValues reads a submitted signup form.
// Passwords are taken verbatim.
func SignupFormFromValues(v url.Values) SignupForm {
	return SignupForm{
		Username:  strings.TrimSpace(v.Get("username")),
		Email:     strings.TrimSpace(v.Get("email")),
		Password1: v.Get("password1"),
		Password2: v.Get("password2"),
	}
}

// Validate returns per-field errors. It never touches the database;
// a taken username surfaces from UserService.Register.
func (f *SignupForm) Validate() forms.Errors {
	return forms.Validate(f)
}

// LoginForm is the login form.
type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// LoginFormFromValues reads a submitted login form.
func LoginFormFromValues(v url.Values) LoginForm {
	return LoginForm{
		Username: strings.TrimSpace(v.Get("username")),
		Password: v.Get("password"),
	}
}

// Validate returns per-field errors.
func (f *LoginForm) Validate() forms.Errors {
	return forms.Validate(f)
}
