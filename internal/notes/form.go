package notes

import (
	"context"
	"net/url"
	"strings"

	"github.com/kuitang/yanote/internal/forms"
)

// SlugTakenWarning is appended to the offending slug in the form error.
const SlugTakenWarning = " - такой slug уже существует, придумайте уникальное значение!"

// NoteForm is the create/edit form.
type NoteForm struct {
	Title string `form:"title" validate:"required,max=100"`
	Text  string `form:"text" validate:"required,maxbytes=1048576"`
	Slug  string `form:"slug" validate:"omitempty,max=100,slug"`
}

// NoteFormFromValues reads a submitted form. Values are trimmed.
func NoteFormFromValues(v url.Values) NoteForm {
	return NoteForm{
		Title: strings.TrimSpace(v.Get("title")),
		Text:  strings.TrimSpace(v.Get("text")),
		Slug:  strings.TrimSpace(v.Get("slug")),
	}
}

// NoteFormFromNote pre-fills the edit form.
func NoteFormFromNote(n *Note) NoteForm {
	return NoteForm{Title: n.Title, Text: n.Text, Slug: n.Slug}
}

// SlugChecker is the part of Service the form needs.
type SlugChecker interface {
	SlugTaken(ctx context.Context, slug string, exceptID int64) (bool, error)
}

// Clean validates the form and resolves the slug. An empty slug is derived
// from the title and stored back into f. A slug held by any note other
// than exceptID is rejected. exceptID is 0 when creating.
func (f *NoteForm) Clean(ctx context.Context, checker SlugChecker, exceptID int64) (forms.Errors, error) {
	errs := forms.Validate(f)
	if errs.Has("slug") {
		return errs, nil
	}
	if f.Slug == "" {
		if errs.Has("title") {
			return errs, nil
		}
		f.Slug = Slugify(f.Title)
	}

	taken, err := checker.SlugTaken(ctx, f.Slug, exceptID)
	if err != nil {
		return nil, err
	}
	if taken {
		errs.Add("slug", f.Slug+SlugTakenWarning)
	}
	return errs, nil
}

// CreateParams converts a cleaned form.
func (f NoteForm) CreateParams() CreateNoteParams {
	return CreateNoteParams{Title: f.Title, Text: f.Text, Slug: f.Slug}
}

// UpdateParams converts a cleaned form.
func (f NoteForm) UpdateParams() UpdateNoteParams {
	return UpdateNoteParams{Title: f.Title, Text: f.Text, Slug: f.Slug}
}
