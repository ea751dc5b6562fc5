package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kuitang/yanote/internal/obs"
	"github.com/kuitang/yanote/internal/urlutil"
)

type ctxKey struct{}

// Middleware resolves the session cookie to a *User.
type Middleware struct {
	sessions *SessionService
	users    *UserService
}

func NewMiddleware(sessions *SessionService, users *UserService) *Middleware {
	return &Middleware{sessions: sessions, users: users}
}

// currentUser returns the user already in the context or the one behind
// the session cookie. Nil means anonymous.
func (m *Middleware) currentUser(r *http.Request) *User {
	ctx := r.Context()
	if u := GetUser(ctx); u != nil {
		return u
	}

	sid, err := GetFromRequest(r)
	if err != nil {
		return nil
	}
	uid, err := m.sessions.Validate(ctx, sid)
	if err != nil {
		return nil
	}
	u, err := m.users.GetByID(ctx, uid)
	if err != nil {
		obs.From(ctx).With("pkg", "auth").Warn("session_user_missing", "user_id", uid, "error", err)
		return nil
	}
	return u
}

// guard runs next with the user in context, or calls deny for anonymous
// requests.
func (m *Middleware) guard(next http.Handler, deny http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := m.currentUser(r)
		if u == nil {
			deny(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireAuth answers anonymous requests with a 401 JSON body.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return m.guard(next, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
	})
}

// RequireAuthWithRedirect sends anonymous requests of any method to the
// login page with next pointing back here.
func (m *Middleware) RequireAuthWithRedirect(next http.Handler) http.Handler {
	return m.guard(next, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, urlutil.LoginRedirectURL(r), http.StatusFound)
	})
}

// OptionalAuth adds the user to the context when the session is valid and
// otherwise passes the request through untouched.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := m.currentUser(r); u != nil {
			r = r.WithContext(WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser stores user in ctx and tags log lines with its ID.
func WithUser(ctx context.Context, user *User) context.Context {
	return obs.WithUserID(context.WithValue(ctx, ctxKey{}, user), user.ID)
}

// GetUser returns the authenticated user, or nil.
func GetUser(ctx context.Context) *User {
	u, _ := ctx.Value(ctxKey{}).(*User)
	return u
}

// GetUserID returns the authenticated user's ID, or "".
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.ID
	}
	return ""
}
