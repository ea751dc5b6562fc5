// Package notes implements owner-scoped note storage and the note form.
// Every lookup is keyed by (slug, author), so a note owned by someone else
// is indistinguishable from a missing one.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kuitang/yanote/internal/db"
	"github.com/kuitang/yanote/internal/errs"
	"github.com/kuitang/yanote/internal/obs"
)

// Service handles note CRUD operations using the db layer
type Service struct {
	db  *db.DB
	now func() time.Time
}

// NewService creates a new notes service.
func NewService(d *db.DB) *Service {
	return &Service{db: d, now: time.Now}
}

// Create stores a note owned by authorID.
//
// An explicit slug that is already taken fails with ErrSlugTaken. An empty
// slug is derived from the title; if the derived slug is taken, the
// smallest free "-N" suffix is used. A concurrent insert that wins the
// UNIQUE race triggers another attempt, up to MaxSlugCollisionRetries.
func (s *Service) Create(ctx context.Context, authorID string, params CreateNoteParams) (*Note, error) {
	if authorID == "" {
		return nil, errs.New(errs.Unauthenticated, "author is required")
	}
	if err := CheckLimits(params.Title, params.Text, params.Slug); err != nil {
		return nil, err
	}

	if params.Slug != "" {
		note, err := s.insert(ctx, authorID, params.Title, params.Text, params.Slug)
		if db.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return note, err
	}

	base := Slugify(params.Title)
	for attempt := 0; attempt < MaxSlugCollisionRetries; attempt++ {
		candidate, err := s.freeSlug(ctx, base)
		if err != nil {
			return nil, err
		}

		note, err := s.insert(ctx, authorID, params.Title, params.Text, candidate)
		if err == nil {
			return note, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, err
		}
		obs.From(ctx).With("pkg", "notes").Debug("slug_collision_retry", "slug", candidate, "attempt", attempt+1)
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrSlugExhausted, MaxSlugCollisionRetries)
}

// freeSlug returns base if unused, otherwise base with the smallest free suffix.
func (s *Service) freeSlug(ctx context.Context, base string) (string, error) {
	taken, err := s.db.Queries().ListSlugsWithBase(ctx, db.ListSlugsWithBaseParams{
		Base:    base,
		Pattern: suffixPattern(base),
	})
	if err != nil {
		return "", fmt.Errorf("failed to check slug: %w", err)
	}
	if !slices.Contains(taken, base) {
		return base, nil
	}
	return WithSuffix(base, nextFreeSuffix(base, taken)), nil
}

func (s *Service) insert(ctx context.Context, authorID, title, text, slug string) (*Note, error) {
	now := s.now().UTC()
	nowUnix := now.Unix()

	id, err := s.db.Queries().CreateNote(ctx, db.CreateNoteParams{
		Title:     title,
		Text:      text,
		Slug:      slug,
		AuthorID:  authorID,
		CreatedAt: nowUnix,
		UpdatedAt: nowUnix,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	obs.NoteOperationsTotal.WithLabelValues("create").Inc()
	return &Note{
		ID:        id,
		Title:     title,
		Text:      text,
		Slug:      slug,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get returns the note with slug if authorID owns it.
func (s *Service) Get(ctx context.Context, authorID, slug string) (*Note, error) {
	row, err := s.db.Queries().GetNoteBySlugAndAuthor(ctx, db.GetNoteBySlugAndAuthorParams{
		Slug:     slug,
		AuthorID: authorID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read note: %w", err)
	}
	return fromRow(row), nil
}

// Update replaces title, text and slug of an owned note. The author never changes.
func (s *Service) Update(ctx context.Context, authorID, slug string, params UpdateNoteParams) (*Note, error) {
	existing, err := s.Get(ctx, authorID, slug)
	if err != nil {
		return nil, err
	}

	newSlug := params.Slug
	if newSlug == "" {
		newSlug = Slugify(params.Title)
	}
	if err := CheckLimits(params.Title, params.Text, newSlug); err != nil {
		return nil, err
	}

	taken, err := s.SlugTaken(ctx, newSlug, existing.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlugTaken
	}

	now := s.now().UTC()
	n, err := s.db.Queries().UpdateNote(ctx, db.UpdateNoteParams{
		Title:     params.Title,
		Text:      params.Text,
		Slug:      newSlug,
		UpdatedAt: now.Unix(),
		ID:        existing.ID,
		AuthorID:  authorID,
	})
	if db.IsUniqueViolation(err) {
		return nil, ErrSlugTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if n == 0 {
		return nil, ErrNoteNotFound
	}

	obs.NoteOperationsTotal.WithLabelValues("update").Inc()
	existing.Title = params.Title
	existing.Text = params.Text
	existing.Slug = newSlug
	existing.UpdatedAt = now
	return existing, nil
}

// Delete hard-deletes an owned note.
func (s *Service) Delete(ctx context.Context, authorID, slug string) error {
	n, err := s.db.Queries().DeleteNote(ctx, db.DeleteNoteParams{
		Slug:     slug,
		AuthorID: authorID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if n == 0 {
		return ErrNoteNotFound
	}
	obs.NoteOperationsTotal.WithLabelValues("delete").Inc()
	return nil
}

// List returns every note of authorID in creation order.
func (s *Service) List(ctx context.Context, authorID string) ([]Note, error) {
	rows, err := s.db.Queries().ListNotesByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	notes := make([]Note, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, *fromRow(row))
	}
	return notes, nil
}

// Count returns the number of notes owned by authorID.
func (s *Service) Count(ctx context.Context, authorID string) (int64, error) {
	n, err := s.db.Queries().CountNotesByAuthor(ctx, authorID)
	if err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return n, nil
}

// CountAll returns the number of notes across all authors.
func (s *Service) CountAll(ctx context.Context) (int64, error) {
	n, err := s.db.Queries().CountNotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return n, nil
}

// SlugTaken reports whether slug belongs to a note other than exceptID.
// Pass 0 for a note that does not exist yet.
func (s *Service) SlugTaken(ctx context.Context, slug string, exceptID int64) (bool, error) {
	taken, err := s.db.Queries().SlugTakenByOther(ctx, db.SlugTakenByOtherParams{
		Slug: slug,
		ID:   exceptID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return taken, nil
}

func fromRow(row db.Note) *Note {
	return &Note{
		ID:        row.ID,
		Title:     row.Title,
		Text:      row.Text,
		Slug:      row.Slug,
		AuthorID:  row.AuthorID,
		CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(row.UpdatedAt, 0).UTC(),
	}
}
