// Package config loads yanote's configuration from CLI flags, the
// environment and an optional .env file, validates it and supplies defaults.
//
// CLI flags control which services are mocked (--no-email, --no-s3, --test).
// Environment variables provide secrets and service configuration.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kuitang/yanote/internal/crypto"
	"github.com/kuitang/yanote/internal/ratelimit"
	"github.com/kuitang/yanote/internal/s3client"
	"github.com/kuitang/yanote/internal/urlutil"
)

const (
	defaultS3Region = "auto"
	masterKeyHexLen = 64
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr string
	BaseURL    string

	// Database and encryption
	DataDir                string        // Directory holding yanote.db
	MasterKey              string        // 64 hex characters (32 bytes); empty only in --test
	SessionDuration        time.Duration // How long sessions remain valid
	SessionCleanupInterval time.Duration // How often expired sessions are purged
	BackupInterval         time.Duration // Server-side scheduled backups; 0 disables

	// Rate limiting
	RateLimitConfig ratelimit.Config

	// Mock service flags (controlled by CLI flags, not env vars)
	NoEmail  bool // If true, use mock email service (--no-email)
	NoS3     bool // If true, backups go to an in-memory S3 (--no-s3)
	TestMode bool // --test: implies both, and MASTER_KEY becomes optional

	// Resend Email
	ResendAPIKey    string
	ResendFromEmail string

	// S3 backup storage
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
}

// Flags are the command-line switches.
type Flags struct {
	NoEmail  bool
	NoS3     bool
	TestMode bool
	Addr     string
	EnvFile  string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fset := flag.NewFlagSet("yanote", flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	fset.BoolVar(&f.NoEmail, "no-email", false, "Use mock email service (logs emails)")
	fset.BoolVar(&f.NoS3, "no-s3", false, "Use in-memory S3 for backups")
	fset.BoolVar(&f.TestMode, "test", false, "Shorthand for --no-email --no-s3; MASTER_KEY optional")
	fset.StringVar(&f.Addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	fset.StringVar(&f.EnvFile, "env-file", ".env", "Optional dotenv file; existing environment variables win")
	if err := fset.Parse(args); err != nil {
		return Flags{}, err
	}

	if f.TestMode {
		f.NoEmail = true
		f.NoS3 = true
	}
	return f, nil
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads the dotenv file named by flags, then reads the
// environment and validates the result.
func LoadConfig(flags Flags) (*Config, error) {
	if err := LoadDotEnv(flags.EnvFile); err != nil {
		return nil, err
	}

	listen := envString("LISTEN_ADDR", ":8080")
	if flags.Addr != "" {
		listen = flags.Addr
	}
	rl := ratelimit.DefaultConfig

	cfg := &Config{
		ListenAddr: listen,
		BaseURL:    envString("BASE_URL", "http://localhost"+listen),

		DataDir:                envString("DATA_DIR", "./data"),
		MasterKey:              envString("MASTER_KEY", ""),
		SessionDuration:        envParsed("SESSION_DURATION", 14*24*time.Hour, time.ParseDuration),
		SessionCleanupInterval: envParsed("SESSION_CLEANUP_INTERVAL", time.Hour, time.ParseDuration),
		BackupInterval:         envParsed("BACKUP_INTERVAL", 0, time.ParseDuration),

		RateLimitConfig: ratelimit.Config{
			AnonRPS:         envParsed("RATE_LIMIT_ANON_RPS", rl.AnonRPS, parseFloat),
			AnonBurst:       envParsed("RATE_LIMIT_ANON_BURST", rl.AnonBurst, strconv.Atoi),
			MemberRPS:       envParsed("RATE_LIMIT_USER_RPS", rl.MemberRPS, parseFloat),
			MemberBurst:     envParsed("RATE_LIMIT_USER_BURST", rl.MemberBurst, strconv.Atoi),
			CleanupInterval: envParsed("RATE_LIMIT_CLEANUP_INTERVAL", rl.CleanupInterval, time.ParseDuration),
		},

		NoEmail:  flags.NoEmail,
		NoS3:     flags.NoS3,
		TestMode: flags.TestMode,

		ResendAPIKey:    envString("RESEND_API_KEY", ""),
		ResendFromEmail: envString("RESEND_FROM_EMAIL", "noreply@yanote.local"),

		AWSEndpointS3:      envString("AWS_ENDPOINT_URL_S3", ""),
		AWSRegion:          envString("AWS_REGION", defaultS3Region),
		AWSAccessKeyID:     envString("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: envString("AWS_SECRET_ACCESS_KEY", ""),
		AWSBucketName:      envString("BUCKET_NAME", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once as a *ValidationError.
func (c *Config) Validate() error {
	var problems []string
	fail := func(bad bool, msg string) {
		if bad {
			problems = append(problems, msg)
		}
	}

	fail(!c.NoEmail && c.ResendAPIKey == "", "RESEND_API_KEY is required (set env var or use --no-email)")
	if !c.NoS3 {
		for _, v := range []struct{ name, value string }{
			{"AWS_ENDPOINT_URL_S3", c.AWSEndpointS3},
			{"BUCKET_NAME", c.AWSBucketName},
			{"AWS_ACCESS_KEY_ID", c.AWSAccessKeyID},
			{"AWS_SECRET_ACCESS_KEY", c.AWSSecretAccessKey},
		} {
			fail(v.value == "", v.name+" is required (set env var or use --no-s3)")
		}
	}

	// Without the master key the database cannot be opened again.
	fail(c.MasterKey == "" && !c.TestMode, "MASTER_KEY is required (generate with: openssl rand -hex 32)")
	fail(c.MasterKey != "" && len(c.MasterKey) != masterKeyHexLen, "MASTER_KEY must be 64 hex characters (32 bytes)")

	fail(c.DataDir == "", "DATA_DIR must not be empty")
	fail(c.SessionDuration <= 0, "SESSION_DURATION must be positive")
	fail(c.SessionCleanupInterval <= 0, "SESSION_CLEANUP_INTERVAL must be positive")
	fail(c.BackupInterval < 0, "BACKUP_INTERVAL must not be negative")

	rl := c.RateLimitConfig
	fail(rl.AnonRPS <= 0, "RATE_LIMIT_ANON_RPS must be positive")
	fail(rl.AnonBurst <= 0, "RATE_LIMIT_ANON_BURST must be positive")
	fail(rl.MemberRPS <= 0, "RATE_LIMIT_USER_RPS must be positive")
	fail(rl.MemberBurst <= 0, "RATE_LIMIT_USER_BURST must be positive")
	fail(rl.CleanupInterval <= 0, "RATE_LIMIT_CLEANUP_INTERVAL must be positive")

	if len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}

// RequireSecureCookies returns true if secure cookies should be required.
// Returns false for localhost development URLs.
func (c *Config) RequireSecureCookies() bool {
	return !urlutil.IsLocalhost(c.BaseURL)
}

// DatabaseKey derives the SQLCipher key from MASTER_KEY.
// It returns nil (an unencrypted database) when no master key is set.
func (c *Config) DatabaseKey() ([]byte, error) {
	if c.MasterKey == "" {
		return nil, nil
	}
	masterKey, err := crypto.ParseMasterKey(c.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("MASTER_KEY: %w", err)
	}
	return crypto.DeriveDatabaseKey(masterKey, DatabaseKeyName, crypto.CurrentKeyVersion), nil
}

// DatabaseKeyName is the HKDF context for the database key.
const DatabaseKeyName = "yanote"

// S3Config returns the backup bucket settings.
func (c *Config) S3Config() s3client.Config {
	return s3client.Config{
		Endpoint:        c.AWSEndpointS3,
		Region:          c.AWSRegion,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
		BucketName:      c.AWSBucketName,
	}
}

// PrintStartupSummary prints a human-readable summary of the configuration to w.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "yanote server starting...")

	if c.NoEmail {
		fmt.Fprintln(w, "  Email:    Mock (--no-email)")
	} else {
		fmt.Fprintf(w, "  Email:    Resend (from: %s)\n", c.ResendFromEmail)
	}

	if c.NoS3 {
		fmt.Fprintln(w, "  Backups:  In-memory S3 (--no-s3)")
	} else {
		fmt.Fprintf(w, "  Backups:  S3 (endpoint: %s, bucket: %s)\n", c.AWSEndpointS3, c.AWSBucketName)
	}

	if c.MasterKey == "" {
		fmt.Fprintln(w, "  Database: UNENCRYPTED (--test without MASTER_KEY)")
	} else {
		fmt.Fprintln(w, "  Database: SQLCipher, key from MASTER_KEY")
	}

	if c.BackupInterval > 0 {
		fmt.Fprintf(w, "  Schedule: backup every %s\n", c.BackupInterval)
	}

	fmt.Fprintf(w, "  Data:     %s\n", c.DataDir)
	fmt.Fprintf(w, "  Listen:   %s\n", c.ListenAddr)
	fmt.Fprintf(w, "  Base:     %s\n", c.BaseURL)
	fmt.Fprintln(w, "")
}

// envString returns the trimmed value of key, or def when unset or blank.
func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envParsed parses key with parse. Unset or unparsable values give def.
func envParsed[T any](key string, def T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := parse(v)
	if err != nil {
		return def
	}
	return parsed
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
