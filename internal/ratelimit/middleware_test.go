package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedHandler(t *testing.T, cfg Config, userID string) http.Handler {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	return RateLimitMiddleware(rl, func(*http.Request) string { return userID })(ok)
}

func TestMiddleware_RejectsAfterBurst(t *testing.T) {
	t.Parallel()
	h := newLimitedHandler(t, Config{AnonRPS: 0.001, AnonBurst: 2, MemberRPS: 1, MemberBurst: 1, CleanupInterval: time.Hour}, "")

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/", nil))
		if i < 2 {
			require.Equal(t, http.StatusNoContent, last.Code, "request %d", i)
		}
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, last.Body.String(), "Too Many Requests")
}

func TestMiddleware_MembersUseTheirOwnTier(t *testing.T) {
	t.Parallel()
	h := newLimitedHandler(t, Config{AnonRPS: 0.001, AnonBurst: 1, MemberRPS: 0.001, MemberBurst: 5, CleanupInterval: time.Hour}, "user-1")

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code, "request %d", i)
	}
}

func TestMiddleware_AnonymousByIPMembersByID(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(Config{AnonRPS: 0.001, AnonBurst: 2, MemberRPS: 0.001, MemberBurst: 4, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	h := RateLimitMiddleware(rl, func(r *http.Request) string { return r.Header.Get("X-Test-User") })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	status := func(user, addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/notes/", nil)
		r.RemoteAddr = addr
		if user != "" {
			r.Header.Set("X-Test-User", user)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, status("", "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, status("", "10.0.0.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, status("", "10.0.0.1:5678"), "same IP, new port")
	assert.Equal(t, http.StatusOK, status("", "10.0.0.2:1234"), "other IP")

	for i := 0; i < 4; i++ {
		require.Equal(t, http.StatusOK, status("u1", "10.0.0.1:1234"), "member request %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, status("u1", "10.0.0.9:1234"), "member keyed by ID, not IP")
}

func TestClientIP(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:5123"
	assert.Equal(t, "203.0.113.7", ClientIP(r))

	r.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", ClientIP(r))

	r.RemoteAddr = "unix-socket"
	assert.Equal(t, "unix-socket", ClientIP(r))
}
