package web

import (
	"errors"
	"net/http"

	"github.com/kuitang/yanote/internal/auth"
	"github.com/kuitang/yanote/internal/forms"
	"github.com/kuitang/yanote/internal/logutil"
	"github.com/kuitang/yanote/internal/obs"
	"github.com/kuitang/yanote/internal/urlutil"
)

// LoginPageData contains data for the login page.
type LoginPageData struct {
	PageData
	Username string
	Next     string
	Errors   forms.Errors
}

// SignupPageData contains data for the signup page. Passwords are never echoed.
type SignupPageData struct {
	PageData
	Username string
	Email    string
	Errors   forms.Errors
}

// HandleLoginPage handles GET /auth/login/.
func (h *WebHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "auth/login.html", LoginPageData{
		PageData: pageData(r, "Вход"),
		Next:     r.URL.Query().Get(urlutil.NextParam),
		Errors:   forms.Errors{},
	})
}

// HandleLogin handles POST /auth/login/ - checks credentials, starts a
// session and follows next when it is a local path.
func (h *WebHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Некорректные данные формы.")
		return
	}
	form := auth.LoginFormFromValues(r.PostForm)
	next := r.PostForm.Get(urlutil.NextParam)
	if next == "" {
		next = r.URL.Query().Get(urlutil.NextParam)
	}
	data := LoginPageData{
		PageData: pageData(r, "Вход"),
		Username: form.Username,
		Next:     next,
	}

	fieldErrs := form.Validate()
	if !fieldErrs.Any() {
		user, err := h.userService.VerifyLogin(r.Context(), form.Username, form.Password)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			fieldErrs.Add(forms.NonFieldErrors, err.Error())
		case err != nil:
			h.renderServiceError(w, r, err)
			return
		default:
			h.startSession(w, r, user, urlutil.SafeNext(next, HomePath))
			return
		}
	}

	obs.From(r.Context()).With("pkg", "web").Info("login_rejected",
		"username", form.Username,
		"form", logutil.FormatFormForLog(r.PostForm, 256),
	)
	data.Errors = fieldErrs
	h.render(w, r, "auth/login.html", data)
}

func (h *WebHandler) startSession(w http.ResponseWriter, r *http.Request, user *auth.User, next string) {
	sessionID, err := h.sessionService.Create(r.Context(), user.ID)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	h.sessionService.SetCookie(w, sessionID)
	obs.From(r.Context()).With("pkg", "web").Info("login", "user_id", user.ID)
	http.Redirect(w, r, next, http.StatusFound)
}

// HandleLogout handles GET and POST /auth/logout/. It always renders the
// logged-out page, even without a session.
func (h *WebHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := auth.GetFromRequest(r); err == nil {
		if err := h.sessionService.Delete(r.Context(), sessionID); err != nil {
			obs.From(r.Context()).With("pkg", "web").Warn("logout_delete_failed", "error", err)
		}
	}
	h.sessionService.ClearCookie(w)
	h.render(w, r, "auth/logout.html", PageData{Title: "Выход"})
}

// HandleSignupPage handles GET /auth/signup/.
func (h *WebHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "auth/signup.html", SignupPageData{
		PageData: pageData(r, "Регистрация"),
		Errors:   forms.Errors{},
	})
}

// HandleSignup handles POST /auth/signup/ and redirects to login on success.
func (h *WebHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Некорректные данные формы.")
		return
	}
	form := auth.SignupFormFromValues(r.PostForm)
	data := SignupPageData{
		PageData: pageData(r, "Регистрация"),
		Username: form.Username,
		Email:    form.Email,
	}

	fieldErrs := form.Validate()
	if !fieldErrs.Any() {
		_, err := h.userService.Register(r.Context(), form.Username, form.Email, form.Password1)
		switch {
		case errors.Is(err, auth.ErrAccountExists):
			fieldErrs.Add("username", err.Error())
		case errors.Is(err, auth.ErrWeakPassword):
			fieldErrs.Add("password1", err.Error())
		case err != nil:
			h.renderServiceError(w, r, err)
			return
		default:
			http.Redirect(w, r, urlutil.LoginPath, http.StatusFound)
			return
		}
	}

	obs.From(r.Context()).With("pkg", "web").Debug("signup_form_invalid",
		"fields", len(fieldErrs),
		"form", logutil.FormatFormForLog(r.PostForm, 256),
	)
	data.Errors = fieldErrs
	h.render(w, r, "auth/signup.html", data)
}
