// Package testdb opens throwaway in-memory databases for tests.
package testdb

import (
	"testing"

	"github.com/google/uuid"

	"github.com/kuitang/yanote/internal/db"
)

// key is fixed; in-memory data never outlives the test.
var key = []byte("yanote-test-key-0123456789abcdef")

// Durability pragmas are pointless for a database that lives in RAM.
var fastPragmas = []string{
	"journal_mode=MEMORY",
	"synchronous=OFF",
	"temp_store=MEMORY",
	"secure_delete=OFF",
	"foreign_keys=ON",
}

// NewInMemory returns a fresh encrypted in-memory database with the schema
// applied. Each call gets its own database.
func NewInMemory() (*db.DB, error) {
	name := "file:yanote-" + uuid.NewString() + "?mode=memory&cache=shared"
	// A single connection keeps the shared-cache database alive.
	return db.OpenDSN(db.DSN(name, key, "_foreign_keys=on"), db.Pool{MaxOpen: 1, MaxIdle: 1}, fastPragmas...)
}

// New is NewInMemory that fails tb on error and closes the database on
// cleanup.
func New(tb testing.TB) *db.DB {
	tb.Helper()
	d, err := NewInMemory()
	if err != nil {
		tb.Fatalf("testdb: %v", err)
	}
	tb.Cleanup(func() { d.Close() })
	return d
}
