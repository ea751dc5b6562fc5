// Package db owns the SQLCipher database: connection setup, schema and the
// hand-written query layer used by the notes and auth services.
package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DatabaseName = "yanote.db"
	// KeySize is the raw SQLCipher key length in bytes.
	KeySize = 32
)

// Pool sizes the connection pool. SQLite has a single writer, so a big
// pool only adds lock contention.
type Pool struct {
	MaxOpen int
	MaxIdle int
}

var filePool = Pool{MaxOpen: 10, MaxIdle: 2}

// DB is the connection pool plus its query set.
type DB struct {
	db      *sql.DB
	queries *Queries
}

// NewFromSQL wraps an existing sql.DB. The schema must already be applied.
func NewFromSQL(sqlDB *sql.DB) *DB {
	return &DB{db: sqlDB, queries: New(sqlDB)}
}

// DB exposes the pool for health checks.
func (d *DB) DB() *sql.DB { return d.db }

func (d *DB) Queries() *Queries { return d.queries }

// DSN builds a go-sqlcipher data source name. A nil key leaves the
// database unencrypted; params are appended as query options.
func DSN(name string, key []byte, params ...string) string {
	var opts []string
	if key != nil {
		opts = append(opts, "_pragma_key=x'"+hex.EncodeToString(key)+"'", "_pragma_cipher_page_size=4096")
	}
	opts = append(opts, params...)
	if len(opts) == 0 {
		return name
	}
	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return name + sep + strings.Join(opts, "&")
}

// Open opens (creating if needed) yanote.db in dataDir. A nil key opens it
// unencrypted, which only --test runs do.
func Open(dataDir string, key []byte) (*DB, error) {
	if key != nil && len(key) != KeySize {
		return nil, fmt.Errorf("database key must be %d bytes, got %d", KeySize, len(key))
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := DSN(filepath.Join(dataDir, DatabaseName), key,
		"_journal_mode=WAL", "_synchronous=NORMAL", "_busy_timeout=5000", "_foreign_keys=on")
	return OpenDSN(dsn, filePool)
}

// OpenDSN opens dsn, runs pragmas, checks that the key decrypts the file
// and applies Schema.
func OpenDSN(dsn string, pool Pool, pragmas ...string) (*DB, error) {
	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(pool.MaxIdle)

	fail := func(step string, err error) (*DB, error) {
		sqlDB.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	// A wrong key only shows up on the first read.
	var n int
	if err := sqlDB.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		return fail("verify database (wrong key?)", err)
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec("PRAGMA " + p); err != nil {
			return fail("pragma "+p, err)
		}
	}
	if _, err := sqlDB.Exec(Schema); err != nil {
		return fail("apply schema", err)
	}
	return NewFromSQL(sqlDB), nil
}

func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// WithTx runs fn in a transaction and commits when fn returns nil.
func (d *DB) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(d.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
