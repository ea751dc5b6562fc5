// Package backup exports every user's notes as one JSON document to
// object storage.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kuitang/yanote/internal/db"
	"github.com/kuitang/yanote/internal/obs"
)

// KeyPrefix is the object key prefix all backups are written under.
const KeyPrefix = "backups/"

// ObjectStore is the subset of s3client.Client the exporter needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, content []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// Snapshot is the exported document. Password hashes and session data
// are never included.
type Snapshot struct {
	CreatedAt time.Time  `json:"created_at"`
	Users     []UserDump `json:"users"`
}

type UserDump struct {
	Username string     `json:"username"`
	Email    string     `json:"email,omitempty"`
	Notes    []NoteDump `json:"notes"`
}

type NoteDump struct {
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exporter writes snapshots of the database to an ObjectStore.
type Exporter struct {
	db    *db.DB
	store ObjectStore
	now   func() time.Time
}

// NewExporter creates an exporter.
func NewExporter(d *db.DB, store ObjectStore) *Exporter {
	return &Exporter{db: d, store: store, now: time.Now}
}

// Export uploads a snapshot and returns its object key.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	logger := obs.From(ctx).With("pkg", "backup")

	snap, err := e.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	key := ObjectKey(snap.CreatedAt)
	if err := e.store.PutObject(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	notes := 0
	for _, u := range snap.Users {
		notes += len(u.Notes)
	}
	logger.Info("backup_exported", "key", key, "users", len(snap.Users), "notes", notes, "bytes", len(body))
	return key, nil
}

// Snapshot reads all users and notes in one transaction.
func (e *Exporter) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{CreatedAt: e.now().UTC()}

	err := e.db.WithTx(ctx, func(q *db.Queries) error {
		users, err := q.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		snap.Users = make([]UserDump, 0, len(users))
		for _, u := range users {
			rows, err := q.ListNotesByAuthor(ctx, u.ID)
			if err != nil {
				return fmt.Errorf("list notes for %s: %w", u.Username, err)
			}
			dump := UserDump{Username: u.Username, Email: u.Email, Notes: make([]NoteDump, 0, len(rows))}
			for _, n := range rows {
				dump.Notes = append(dump.Notes, NoteDump{
					Title:     n.Title,
					Text:      n.Text,
					Slug:      n.Slug,
					CreatedAt: time.Unix(n.CreatedAt, 0).UTC(),
					UpdatedAt: time.Unix(n.UpdatedAt, 0).UTC(),
				})
			}
			snap.Users = append(snap.Users, dump)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// List returns existing backup keys, oldest first.
func (e *Exporter) List(ctx context.Context) ([]string, error) {
	return e.store.ListKeys(ctx, KeyPrefix)
}

// Load fetches and decodes the snapshot stored at key.
func (e *Exporter) Load(ctx context.Context, key string) (*Snapshot, error) {
	raw, err := e.store.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}

// RunSchedule exports a snapshot every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (e *Exporter) RunSchedule(ctx context.Context, interval time.Duration) {
	logger := obs.Pkg("backup")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Export(ctx); err != nil {
				logger.Error("scheduled_backup_failed", "error", err)
			}
		}
	}
}

// keyTimeLayout keeps every fractional digit so keys are fixed width and sort by time.
const keyTimeLayout = "20060102T150405.000000000Z"

// ObjectKey returns the key a snapshot taken at t is stored under.
func ObjectKey(t time.Time) string {
	return KeyPrefix + "notes-" + t.UTC().Format(keyTimeLayout) + ".json"
}
