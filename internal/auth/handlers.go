package auth

import (
	"encoding/json"
	"net/http"
)

// Handler serves the JSON auth endpoints. The HTML login, logout and
// signup pages live in the web package.
type Handler struct {
	middleware *Middleware
}

// NewHandler creates a new auth handler.
func NewHandler(middleware *Middleware) *Handler {
	return &Handler{middleware: middleware}
}

// RegisterRoutes registers the JSON auth routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /auth/whoami", h.middleware.RequireAuth(http.HandlerFunc(h.HandleWhoami)))
}

// WhoamiResponse is the response for the whoami endpoint.
type WhoamiResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// HandleWhoami returns the current user. RequireAuth answers 401 for anonymous callers.
func (h *Handler) HandleWhoami(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WhoamiResponse{
		UserID:   user.ID,
		Username: user.Username,
	})
}
