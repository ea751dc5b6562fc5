package notes

import (
	"time"

	"github.com/kuitang/yanote/internal/errs"
)

var (
	// ErrNoteNotFound is returned for missing notes and for notes owned by someone else.
	ErrNoteNotFound = errs.New(errs.NotFound, "note not found")

	// ErrSlugTaken is returned when an explicit slug belongs to another note.
	ErrSlugTaken = errs.New(errs.AlreadyExists, "slug already exists")

	// ErrSlugExhausted is returned when no free suffix was found for a derived slug.
	ErrSlugExhausted = errs.New(errs.Internal, "could not find a free slug")
)

// Note represents a user's note
type Note struct {
	ID        int64     `json:"-"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Slug      string    `json:"slug"`
	AuthorID  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateNoteParams contains parameters for creating a note.
// An empty Slug is derived from Title.
type CreateNoteParams struct {
	Title string
	Text  string
	Slug  string
}

// UpdateNoteParams replaces every editable field of a note.
// An empty Slug is derived from Title.
type UpdateNoteParams struct {
	Title string
	Text  string
	Slug  string
}
