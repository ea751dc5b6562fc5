// yanote server: private notes behind session-cookie auth.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/yanote/internal/auth"
	"github.com/kuitang/yanote/internal/backup"
	"github.com/kuitang/yanote/internal/config"
	"github.com/kuitang/yanote/internal/db"
	"github.com/kuitang/yanote/internal/email"
	"github.com/kuitang/yanote/internal/notes"
	"github.com/kuitang/yanote/internal/obs"
	"github.com/kuitang/yanote/internal/ratelimit"
	"github.com/kuitang/yanote/internal/s3client"
	"github.com/kuitang/yanote/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	obs.Init()

	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg.PrintStartupSummary(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		obs.Pkg("main").Error("server_exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := obs.Pkg("main")

	key, err := cfg.DatabaseKey()
	if err != nil {
		return err
	}
	database, err := db.Open(cfg.DataDir, key)
	if err != nil {
		return err
	}
	defer database.Close()

	a := newApp(cfg, database, newEmailService(cfg))
	defer a.limiter.Stop()

	go a.sessions.RunCleanup(ctx, cfg.SessionCleanupInterval)

	if cfg.BackupInterval > 0 {
		store, closeStore, err := newObjectStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		go backup.NewExporter(database, store).RunSchedule(ctx, cfg.BackupInterval)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// app holds the assembled handler and the services with background work.
type app struct {
	handler  http.Handler
	sessions *auth.SessionService
	users    *auth.UserService
	limiter  *ratelimit.RateLimiter
}

func newApp(cfg *config.Config, database *db.DB, mailer email.EmailService) *app {
	users := auth.NewUserService(database, mailer, cfg.BaseURL)
	sessions := auth.NewSessionService(database, cfg.SessionDuration, cfg.RequireSecureCookies())
	notesService := notes.NewService(database)
	authMiddleware := auth.NewMiddleware(sessions, users)

	renderer, err := web.NewDefaultRenderer()
	if err != nil {
		// Templates are embedded; a parse failure is a build defect.
		panic(fmt.Sprintf("parse embedded templates: %v", err))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", obs.MetricsHandler())
	mux.HandleFunc("GET /healthz", healthz(database))
	auth.NewHandler(authMiddleware).RegisterRoutes(mux)
	web.NewWebHandler(renderer, notesService, users, sessions).RegisterRoutes(mux, authMiddleware)

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	limit := ratelimit.RateLimitMiddleware(limiter, func(r *http.Request) string {
		return auth.GetUserID(r.Context())
	})

	// OptionalAuth runs before the limiter so members get their own bucket.
	// MetricsMiddleware wraps the mux directly to read the matched pattern.
	var handler http.Handler = obs.MetricsMiddleware(mux)
	handler = obs.AccessLogMiddleware("http", handler)
	handler = limit(handler)
	handler = authMiddleware.OptionalAuth(handler)
	handler = obs.RecoverMiddleware(handler)
	handler = obs.RequestContextMiddleware(handler)

	return &app{
		handler:  handler,
		sessions: sessions,
		users:    users,
		limiter:  limiter,
	}
}

func healthz(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := database.DB().PingContext(r.Context()); err != nil {
			obs.From(r.Context()).Error("healthz_failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}
}

func newEmailService(cfg *config.Config) email.EmailService {
	if cfg.NoEmail {
		return email.NewMockEmailService()
	}
	return email.NewResendEmailService(cfg.ResendAPIKey, cfg.ResendFromEmail)
}

// newObjectStore connects to the backup bucket, or to an in-memory
// store when S3 is disabled.
func newObjectStore(ctx context.Context, cfg *config.Config) (*s3client.Client, func(), error) {
	if cfg.NoS3 {
		return s3client.NewInMemory(ctx, "yanote-backups")
	}
	client, err := s3client.New(ctx, cfg.S3Config())
	if err != nil {
		return nil, nil, err
	}
	return client, func() {}, nil
}
