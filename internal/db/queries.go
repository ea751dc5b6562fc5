package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ============================================================================
// users
// ============================================================================

const createUser = `
INSERT INTO users (id, username, email, password_hash, created_at)
VALUES (?, ?, ?, ?, ?)
`

type CreateUserParams struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.ID,
		arg.Username,
		arg.Email,
		arg.PasswordHash,
		arg.CreatedAt,
	)
	return err
}

const getUserByUsername = `
SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?
`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByUsername, username)
	var i User
	err := row.Scan(&i.ID, &i.Username, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const getUserByID = `
SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?
`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i User
	err := row.Scan(&i.ID, &i.Username, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const listUsers = `
SELECT id, username, email, password_hash, created_at FROM users ORDER BY username
`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(&i.ID, &i.Username, &i.Email, &i.PasswordHash, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ============================================================================
// sessions
// ============================================================================

const upsertSession = `
INSERT INTO sessions (session_id, user_id, expires_at, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET expires_at = excluded.expires_at
`

type UpsertSessionParams struct {
	SessionID string
	UserID    string
	ExpiresAt int64
	CreatedAt int64
}

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, upsertSession,
		arg.SessionID,
		arg.UserID,
		arg.ExpiresAt,
		arg.CreatedAt,
	)
	return err
}

const getSession = `
SELECT session_id, user_id, expires_at, created_at FROM sessions WHERE session_id = ?
`

func (q *Queries) GetSession(ctx context.Context, sessionID string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSession, sessionID)
	var i Session
	err := row.Scan(&i.SessionID, &i.UserID, &i.ExpiresAt, &i.CreatedAt)
	return i, err
}

const deleteSession = `
DELETE FROM sessions WHERE session_id = ?
`

func (q *Queries) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, sessionID)
	return err
}

const deleteSessionsByUserID = `
DELETE FROM sessions WHERE user_id = ?
`

func (q *Queries) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteSessionsByUserID, userID)
	return err
}

const deleteExpiredSessions = `
DELETE FROM sessions WHERE expires_at <= ?
`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ============================================================================
// notes
// ============================================================================

const createNote = `
INSERT INTO notes (title, text, slug, author_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateNoteParams struct {
	Title     string
	Text      string
	Slug      string
	AuthorID  string
	CreatedAt int64
	UpdatedAt int64
}

func (q *Queries) CreateNote(ctx context.Context, arg CreateNoteParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createNote,
		arg.Title,
		arg.Text,
		arg.Slug,
		arg.AuthorID,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getNoteBySlugAndAuthor = `
SELECT id, title, text, slug, author_id, created_at, updated_at
FROM notes
WHERE slug = ? AND author_id = ?
`

type GetNoteBySlugAndAuthorParams struct {
	Slug     string
	AuthorID string
}

func (q *Queries) GetNoteBySlugAndAuthor(ctx context.Context, arg GetNoteBySlugAndAuthorParams) (Note, error) {
	row := q.db.QueryRowContext(ctx, getNoteBySlugAndAuthor, arg.Slug, arg.AuthorID)
	var i Note
	err := row.Scan(&i.ID, &i.Title, &i.Text, &i.Slug, &i.AuthorID, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listNotesByAuthor = `
SELECT id, title, text, slug, author_id, created_at, updated_at
FROM notes
WHERE author_id = ?
ORDER BY id
`

func (q *Queries) ListNotesByAuthor(ctx context.Context, authorID string) ([]Note, error) {
	rows, err := q.db.QueryContext(ctx, listNotesByAuthor, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Note
	for rows.Next() {
		var i Note
		if err := rows.Scan(&i.ID, &i.Title, &i.Text, &i.Slug, &i.AuthorID, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countNotesByAuthor = `
SELECT count(*) FROM notes WHERE author_id = ?
`

func (q *Queries) CountNotesByAuthor(ctx context.Context, authorID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countNotesByAuthor, authorID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countNotes = `
SELECT count(*) FROM notes
`

func (q *Queries) CountNotes(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countNotes)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateNote = `
UPDATE notes
SET title = ?, text = ?, slug = ?, updated_at = ?
WHERE id = ? AND author_id = ?
`

type UpdateNoteParams struct {
	Title     string
	Text      string
	Slug      string
	UpdatedAt int64
	ID        int64
	AuthorID  string
}

func (q *Queries) UpdateNote(ctx context.Context, arg UpdateNoteParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateNote,
		arg.Title,
		arg.Text,
		arg.Slug,
		arg.UpdatedAt,
		arg.ID,
		arg.AuthorID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteNote = `
DELETE FROM notes WHERE slug = ? AND author_id = ?
`

type DeleteNoteParams struct {
	Slug     string
	AuthorID string
}

func (q *Queries) DeleteNote(ctx context.Context, arg DeleteNoteParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteNote, arg.Slug, arg.AuthorID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const slugTakenByOther = `
SELECT EXISTS(SELECT 1 FROM notes WHERE slug = ? AND id != ?)
`

type SlugTakenByOtherParams struct {
	Slug string
	// ID of the note being edited; 0 for a new note.
	ID int64
}

func (q *Queries) SlugTakenByOther(ctx context.Context, arg SlugTakenByOtherParams) (bool, error) {
	row := q.db.QueryRowContext(ctx, slugTakenByOther, arg.Slug, arg.ID)
	var taken bool
	err := row.Scan(&taken)
	return taken, err
}

// Uses the regexp() function registered by the driver.
const listSlugsWithBase = `
SELECT slug FROM notes WHERE slug = ? OR slug REGEXP ?
`

type ListSlugsWithBaseParams struct {
	Base string
	// Pattern matching Base followed by a numeric suffix.
	Pattern string
}

func (q *Queries) ListSlugsWithBase(ctx context.Context, arg ListSlugsWithBaseParams) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listSlugsWithBase, arg.Base, arg.Pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		items = append(items, slug)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
