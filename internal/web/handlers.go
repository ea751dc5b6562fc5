package web

import (
	"net/http"

	"github.com/kuitang/yanote/internal/auth"
	"github.com/kuitang/yanote/internal/errs"
	"github.com/kuitang/yanote/internal/notes"
	"github.com/kuitang/yanote/internal/obs"
)

// Page paths
const (
	HomePath    = "/"
	ListPath    = "/notes/"
	AddPath     = "/add/"
	SuccessPath = "/done/"
	SignupPath  = "/auth/signup/"
	LogoutPath  = "/auth/logout/"
)

// EditPath returns the edit page of the note with slug.
func EditPath(slug string) string { return "/edit/" + slug + "/" }

// DeletePath returns the delete page of the note with slug.
func DeletePath(slug string) string { return "/delete/" + slug + "/" }

// DetailPath returns the detail page of the note with slug.
func DetailPath(slug string) string { return "/note/" + slug + "/" }

// WebHandler provides HTTP handlers for web UI pages.
type WebHandler struct {
	renderer       *Renderer
	notesService   *notes.Service
	userService    *auth.UserService
	sessionService *auth.SessionService
}

// NewWebHandler creates a new web handler.
func NewWebHandler(
	renderer *Renderer,
	notesService *notes.Service,
	userService *auth.UserService,
	sessionService *auth.SessionService,
) *WebHandler {
	return &WebHandler{
		renderer:       renderer,
		notesService:   notesService,
		userService:    userService,
		sessionService: sessionService,
	}
}

// RegisterRoutes registers all web UI routes on the given mux.
func (h *WebHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	page := func(f http.HandlerFunc) http.Handler { return authMiddleware.OptionalAuth(f) }
	private := func(f http.HandlerFunc) http.Handler { return authMiddleware.RequireAuthWithRedirect(f) }

	mux.Handle("GET /{$}", page(h.HandleHome))

	// Notes (login required; anonymous requests of any method go to login)
	mux.Handle("GET /notes/{$}", private(h.HandleNotesList))
	mux.Handle("GET /add/{$}", private(h.HandleAddPage))
	mux.Handle("POST /add/{$}", private(h.HandleCreateNote))
	mux.Handle("GET /done/{$}", private(h.HandleSuccess))
	mux.Handle("GET /note/{slug}/{$}", private(h.HandleNoteDetail))
	mux.Handle("GET /edit/{slug}/{$}", private(h.HandleEditPage))
	mux.Handle("POST /edit/{slug}/{$}", private(h.HandleUpdateNote))
	mux.Handle("GET /delete/{slug}/{$}", private(h.HandleDeletePage))
	mux.Handle("POST /delete/{slug}/{$}", private(h.HandleDeleteNote))
	mux.Handle("DELETE /delete/{slug}/{$}", private(h.HandleDeleteNote))

	// Accounts
	mux.Handle("GET /auth/login/{$}", page(h.HandleLoginPage))
	mux.HandleFunc("POST /auth/login/{$}", h.HandleLogin)
	mux.Handle("GET /auth/logout/{$}", page(h.HandleLogout))
	mux.Handle("POST /auth/logout/{$}", page(h.HandleLogout))
	mux.Handle("GET /auth/signup/{$}", page(h.HandleSignupPage))
	mux.HandleFunc("POST /auth/signup/{$}", h.HandleSignup)

	mux.Handle("/", page(h.HandleNotFound))
}

// PageData contains common data passed to all templates.
type PageData struct {
	Title string
	User  *auth.User
	Error string
}

func pageData(r *http.Request, title string) PageData {
	return PageData{Title: title, User: auth.GetUser(r.Context())}
}

// HandleHome handles GET / for everyone.
func (h *WebHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "home.html", pageData(r, "YaNote"))
}

// HandleNotFound renders the 404 page for unmatched paths.
func (h *WebHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.RenderError(w, http.StatusNotFound, "Страница не найдена.")
}

// render writes a 200 page and falls back to a plain 500 on template failure.
func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	if err := h.renderer.Render(w, templateName, data); err != nil {
		obs.From(r.Context()).With("pkg", "web").Error("render_failed", "template", templateName, "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// renderServiceError maps a coded error to its status and renders the
// error page. Only typed messages reach the user.
func (h *WebHandler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).With("pkg", "web").Error("request_failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	h.renderer.RenderError(w, status, errs.MessageOf(err))
}
