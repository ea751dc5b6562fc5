package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/yanote/internal/db"
	"github.com/kuitang/yanote/internal/email"
	"github.com/kuitang/yanote/internal/errs"
	"github.com/kuitang/yanote/internal/obs"
	"github.com/kuitang/yanote/internal/urlutil"
)

var (
	ErrUserNotFound       = errs.New(errs.NotFound, "user not found")
	ErrInvalidCredentials = errs.New(errs.Unauthenticated, "Please enter a correct username and password. Note that both fields may be case-sensitive.")
	ErrAccountExists      = errs.New(errs.AlreadyExists, "A user with that username already exists.")
	ErrWeakPassword       = errs.New(errs.InvalidArgument, "This password is too short. It must contain at least 8 characters.")
)

// User is an account as the rest of the app sees it. The password hash
// never leaves this package.
type User struct {
	ID        string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"-"`
	CreatedAt time.Time `json:"-"`
}

func userFromRow(row db.User) *User {
	return &User{
		ID:        row.ID,
		Username:  row.Username,
		Email:     row.Email,
		CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
	}
}

// UserService registers accounts and checks credentials.
type UserService struct {
	db      *db.DB
	mail    email.EmailService
	baseURL string
	hasher  PasswordHasher
	clock   Clock
}

// NewUserService wires the service to d. mail may be nil; baseURL is used
// for links in the welcome email.
func NewUserService(d *db.DB, mail email.EmailService, baseURL string) *UserService {
	return &UserService{db: d, mail: mail, baseURL: baseURL, hasher: Argon2Hasher{}, clock: realClock{}}
}

func (s *UserService) SetClock(c Clock) { s.clock = c }

// SetHasher swaps the password hasher; tests use FakeInsecureHasher.
func (s *UserService) SetHasher(h PasswordHasher) { s.hasher = h }

func countAttempt(kind, outcome string) {
	obs.AuthAttemptsTotal.WithLabelValues(kind, outcome).Inc()
}

// Register creates an account. A non-empty emailAddr gets a welcome
// email; failing to send it is logged and does not fail the signup.
func (s *UserService) Register(ctx context.Context, username, emailAddr, password string) (*User, error) {
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{ID: uuid.NewString(), Username: username, Email: emailAddr, CreatedAt: s.clock.Now().UTC()}
	err = s.db.Queries().CreateUser(ctx, db.CreateUserParams{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: hash,
		CreatedAt:    u.CreatedAt.Unix(),
	})
	switch {
	case db.IsUniqueViolation(err):
		countAttempt("signup", "exists")
		return nil, ErrAccountExists
	case err != nil:
		return nil, fmt.Errorf("create user: %w", err)
	}
	countAttempt("signup", "success")

	s.sendWelcome(ctx, u)
	return u, nil
}

func (s *UserService) sendWelcome(ctx context.Context, u *User) {
	if u.Email == "" || s.mail == nil {
		return
	}
	data := email.WelcomeData{Username: u.Username, NotesURL: urlutil.BuildAbsolute(s.baseURL, "/notes/")}
	if err := s.mail.Send(u.Email, email.TemplateWelcome, data); err != nil {
		obs.From(ctx).With("pkg", "auth").Warn("welcome_email_failed", "user_id", u.ID, "error", err)
	}
}

// VerifyLogin checks username and password. An unknown user and a wrong
// password both give ErrInvalidCredentials.
func (s *UserService) VerifyLogin(ctx context.Context, username, password string) (*User, error) {
	row, err := s.db.Queries().GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		// Spend a hash so unknown usernames take as long as known ones.
		_, _ = s.hasher.HashPassword(password)
		countAttempt("login", "failure")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	if !s.hasher.VerifyPassword(password, row.PasswordHash) {
		countAttempt("login", "failure")
		return nil, ErrInvalidCredentials
	}
	countAttempt("login", "success")
	return userFromRow(row), nil
}

// GetByID returns ErrUserNotFound for unknown IDs.
func (s *UserService) GetByID(ctx context.Context, id string) (*User, error) {
	return lookup(s.db.Queries().GetUserByID(ctx, id))
}

// GetByUsername returns the user with username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*User, error) {
	return lookup(s.db.Queries().GetUserByUsername(ctx, username))
}

func lookup(row db.User, err error) (*User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return userFromRow(row), nil
}
