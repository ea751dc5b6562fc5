package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kuitang/yanote/internal/db"
	"github.com/kuitang/yanote/internal/errs"
	"github.com/kuitang/yanote/internal/obs"
)

var (
	ErrSessionNotFound = errs.New(errs.Unauthenticated, "session not found")
	ErrSessionExpired  = errs.New(errs.Unauthenticated, "session expired")
)

const (
	DefaultSessionDuration = 14 * 24 * time.Hour
	SessionCookieName      = "session_id"
	// SessionIDLength is the number of random bytes in a session ID.
	SessionIDLength = 32
)

// SessionService stores login sessions in the sessions table and
// moves their IDs in and out of cookies.
type SessionService struct {
	db       *db.DB
	clock    Clock
	lifetime time.Duration
	secure   bool
}

// NewSessionService returns a service whose sessions last lifetime
// (DefaultSessionDuration when zero). secure sets the cookie Secure flag.
func NewSessionService(d *db.DB, lifetime time.Duration, secure bool) *SessionService {
	if lifetime <= 0 {
		lifetime = DefaultSessionDuration
	}
	return &SessionService{db: d, clock: realClock{}, lifetime: lifetime, secure: secure}
}

func (s *SessionService) SetClock(c Clock) { s.clock = c }

// Create opens a session for userID and returns its ID.
func (s *SessionService) Create(ctx context.Context, userID string) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	if err := s.db.Queries().UpsertSession(ctx, db.UpsertSessionParams{
		SessionID: id,
		UserID:    userID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.lifetime).Unix(),
	}); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return id, nil
}

func newSessionID() (string, error) {
	raw := make([]byte, SessionIDLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Validate returns the user ID owning sessionID. An expired session is
// removed before ErrSessionExpired is returned.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (string, error) {
	q := s.db.Queries()
	row, err := q.GetSession(ctx, sessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrSessionNotFound
	case err != nil:
		return "", fmt.Errorf("get session: %w", err)
	}

	if s.clock.Now().Unix() >= row.ExpiresAt {
		if err := q.DeleteSession(ctx, sessionID); err != nil {
			obs.From(ctx).With("pkg", "auth").Warn("expired_session_delete_failed", "error", err)
		}
		return "", ErrSessionExpired
	}
	return row.UserID, nil
}

// Delete ends one session. Unknown IDs are ignored.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	if err := s.db.Queries().DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByUserID ends every session of userID.
func (s *SessionService) DeleteByUserID(ctx context.Context, userID string) error {
	if err := s.db.Queries().DeleteSessionsByUserID(ctx, userID); err != nil {
		return fmt.Errorf("delete sessions of %s: %w", userID, err)
	}
	return nil
}

// Cleanup deletes expired sessions and reports how many went.
func (s *SessionService) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.db.Queries().DeleteExpiredSessions(ctx, s.clock.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

// RunCleanup runs Cleanup on every tick of interval until ctx ends.
func (s *SessionService) RunCleanup(ctx context.Context, interval time.Duration) {
	logger := obs.Pkg("auth")
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		switch n, err := s.Cleanup(ctx); {
		case err != nil:
			logger.Error("session_cleanup_failed", "error", err)
		case n > 0:
			logger.Info("session_cleanup", "removed", n)
		}
	}
}

func (s *SessionService) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetCookie hands sessionID to the browser for the session lifetime.
func (s *SessionService) SetCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, s.cookie(sessionID, int(s.lifetime/time.Second)))
}

// ClearCookie tells the browser to drop the session cookie.
func (s *SessionService) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie("", -1))
}

// GetFromRequest reads the session ID cookie. A missing or empty cookie
// gives ErrSessionNotFound.
func GetFromRequest(r *http.Request) (string, error) {
	c, err := r.Cookie(SessionCookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
