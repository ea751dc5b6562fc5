package web

import (
	"errors"
	"net/http"

	"github.com/kuitang/yanote/internal/auth"
	"github.com/kuitang/yanote/internal/forms"
	"github.com/kuitang/yanote/internal/logutil"
	"github.com/kuitang/yanote/internal/notes"
	"github.com/kuitang/yanote/internal/obs"
)

// maxFormBytes bounds a note form body: 1 MiB of text plus the other fields.
const maxFormBytes = notes.MaxTextBytes + 64*1024

// NotesListData contains data for the notes list page.
type NotesListData struct {
	PageData
	Notes []notes.Note
}

// NoteFormData contains data for the create and edit pages.
type NoteFormData struct {
	PageData
	Form   notes.NoteForm
	Errors forms.Errors
	Action string
	IsEdit bool
}

// NoteViewData contains data for the detail and delete pages.
type NoteViewData struct {
	PageData
	Note *notes.Note
}

// HandleNotesList handles GET /notes/ - the current user's notes only.
func (h *WebHandler) HandleNotesList(w http.ResponseWriter, r *http.Request) {
	list, err := h.notesService.List(r.Context(), auth.GetUserID(r.Context()))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.render(w, r, "notes/list.html", NotesListData{
		PageData: pageData(r, "Заметки"),
		Notes:    list,
	})
}

// HandleAddPage handles GET /add/ - shows an empty note form.
func (h *WebHandler) HandleAddPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "notes/form.html", NoteFormData{
		PageData: pageData(r, "Новая заметка"),
		Errors:   forms.Errors{},
		Action:   AddPath,
	})
}

// HandleCreateNote handles POST /add/ - creates a note owned by the current user.
func (h *WebHandler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseNoteForm(w, r)
	if !ok {
		return
	}
	data := NoteFormData{PageData: pageData(r, "Новая заметка"), Form: form, Action: AddPath}

	fieldErrs, err := data.Form.Clean(r.Context(), h.notesService, 0)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	if fieldErrs.Any() {
		h.rejectForm(w, r, data, fieldErrs)
		return
	}

	_, err = h.notesService.Create(r.Context(), auth.GetUserID(r.Context()), data.Form.CreateParams())
	if errors.Is(err, notes.ErrSlugTaken) {
		// Lost a race with another insert after Clean.
		fieldErrs.Add("slug", data.Form.Slug+notes.SlugTakenWarning)
		h.rejectForm(w, r, data, fieldErrs)
		return
	}
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, SuccessPath, http.StatusFound)
}

// HandleSuccess handles GET /done/.
func (h *WebHandler) HandleSuccess(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "notes/success.html", pageData(r, "Успешно"))
}

// HandleNoteDetail handles GET /note/{slug}/.
func (h *WebHandler) HandleNoteDetail(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownNote(w, r)
	if !ok {
		return
	}
	h.render(w, r, "notes/detail.html", NoteViewData{
		PageData: pageData(r, note.Title),
		Note:     note,
	})
}

// HandleEditPage handles GET /edit/{slug}/ - the form pre-filled with the note.
func (h *WebHandler) HandleEditPage(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownNote(w, r)
	if !ok {
		return
	}
	h.render(w, r, "notes/form.html", NoteFormData{
		PageData: pageData(r, "Редактирование"),
		Form:     notes.NoteFormFromNote(note),
		Errors:   forms.Errors{},
		Action:   EditPath(note.Slug),
		IsEdit:   true,
	})
}

// HandleUpdateNote handles POST /edit/{slug}/.
func (h *WebHandler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownNote(w, r)
	if !ok {
		return
	}
	form, ok := h.parseNoteForm(w, r)
	if !ok {
		return
	}
	data := NoteFormData{
		PageData: pageData(r, "Редактирование"),
		Form:     form,
		Action:   EditPath(note.Slug),
		IsEdit:   true,
	}

	fieldErrs, err := data.Form.Clean(r.Context(), h.notesService, note.ID)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	if fieldErrs.Any() {
		h.rejectForm(w, r, data, fieldErrs)
		return
	}

	_, err = h.notesService.Update(r.Context(), auth.GetUserID(r.Context()), note.Slug, data.Form.UpdateParams())
	if errors.Is(err, notes.ErrSlugTaken) {
		fieldErrs.Add("slug", data.Form.Slug+notes.SlugTakenWarning)
		h.rejectForm(w, r, data, fieldErrs)
		return
	}
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, SuccessPath, http.StatusFound)
}

// HandleDeletePage handles GET /delete/{slug}/ - the confirmation page.
func (h *WebHandler) HandleDeletePage(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownNote(w, r)
	if !ok {
		return
	}
	h.render(w, r, "notes/delete.html", NoteViewData{
		PageData: pageData(r, "Удаление"),
		Note:     note,
	})
}

// HandleDeleteNote handles POST and DELETE /delete/{slug}/.
func (h *WebHandler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	err := h.notesService.Delete(r.Context(), auth.GetUserID(r.Context()), r.PathValue("slug"))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, SuccessPath, http.StatusFound)
}

// ownNote loads the {slug} note of the current user. Someone else's note
// renders the same 404 as a missing one.
func (h *WebHandler) ownNote(w http.ResponseWriter, r *http.Request) (*notes.Note, bool) {
	note, err := h.notesService.Get(r.Context(), auth.GetUserID(r.Context()), r.PathValue("slug"))
	if err != nil {
		h.renderServiceError(w, r, err)
		return nil, false
	}
	return note, true
}

func (h *WebHandler) parseNoteForm(w http.ResponseWriter, r *http.Request) (notes.NoteForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Некорректные данные формы.")
		return notes.NoteForm{}, false
	}
	return notes.NoteFormFromValues(r.PostForm), true
}

// rejectForm re-renders the form with its errors and status 200.
func (h *WebHandler) rejectForm(w http.ResponseWriter, r *http.Request, data NoteFormData, fieldErrs forms.Errors) {
	obs.From(r.Context()).With("pkg", "web").Debug("note_form_invalid",
		"path", r.URL.Path,
		"fields", len(fieldErrs),
		"form", logutil.FormatFormForLog(r.PostForm, 512),
	)
	data.Errors = fieldErrs
	h.render(w, r, "notes/form.html", data)
}
