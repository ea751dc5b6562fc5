package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"

	"github.com/kuitang/yanote/internal/db"
	"github.com/kuitang/yanote/internal/errs"
	"github.com/kuitang/yanote/internal/testdb"
)

var testCounter atomic.Int64

// =============================================================================
// Test Setup Helpers
// =============================================================================

type fataler interface {
	Fatalf(format string, args ...interface{})
}

// createInMemoryService returns a service on a fresh database with two users.
func createInMemoryService(t fataler) (*Service, string, string) {
	d, err := testdb.NewInMemory()
	if err != nil {
		t.Fatalf("failed to create in-memory database: %v", err)
	}
	n := testCounter.Add(1)
	author := fmt.Sprintf("author-%d", n)
	other := fmt.Sprintf("other-%d", n)
	for _, id := range []string{author, other} {
		err := d.Queries().CreateUser(context.Background(), db.CreateUserParams{
			ID: id, Username: id, PasswordHash: "x", CreatedAt: 1,
		})
		if err != nil {
			t.Fatalf("failed to create user %s: %v", id, err)
		}
	}
	return NewService(d), author, other
}

func titleGen() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,30}`),
		rapid.StringMatching(`Заметка [0-9]{1,3}`),
		rapid.SampledFrom([]string{"Заметка", "Plan", "!!!", "Список дел"}),
	)
}

// =============================================================================
// Property: N notes list back as N notes with N unique slugs
// =============================================================================

func testList_UniqueSlugs_Properties(t *rapid.T) {
	svc, author, other := createInMemoryService(t)
	defer svc.db.Close()
	ctx := context.Background()

	n := rapid.IntRange(0, 25).Draw(t, "n")
	for i := 0; i < n; i++ {
		title := titleGen().Draw(t, fmt.Sprintf("title%d", i))
		if _, err := svc.Create(ctx, author, CreateNoteParams{Title: title, Text: "Просто текст."}); err != nil {
			t.Fatalf("Create(%q) failed: %v", title, err)
		}
	}
	if _, err := svc.Create(ctx, other, CreateNoteParams{Title: "Чужая", Text: "x"}); err != nil {
		t.Fatalf("Create for other failed: %v", err)
	}

	notes, err := svc.List(ctx, author)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(notes) != n {
		t.Fatalf("expected %d notes, got %d", n, len(notes))
	}
	seen := make(map[string]bool)
	for _, note := range notes {
		if note.AuthorID != author {
			t.Fatalf("listed foreign note %q", note.Slug)
		}
		if seen[note.Slug] {
			t.Fatalf("duplicate slug %q", note.Slug)
		}
		seen[note.Slug] = true
		if len(note.Slug) > MaxSlugLength || !IsValidSlug(note.Slug) {
			t.Fatalf("invalid slug %q", note.Slug)
		}
	}

	count, err := svc.Count(ctx, author)
	if err != nil || count != int64(n) {
		t.Fatalf("Count = %d, %v; want %d", count, err, n)
	}
}

func TestList_UniqueSlugs_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testList_UniqueSlugs_Properties)
}

func FuzzList_UniqueSlugs_Properties(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testList_UniqueSlugs_Properties))
}

// =============================================================================
// Property: only the author can read, update or delete a note
// =============================================================================

func testOwnerOnly_Properties(t *rapid.T) {
	svc, author, other := createInMemoryService(t)
	defer svc.db.Close()
	ctx := context.Background()

	title := titleGen().Draw(t, "title")
	note, err := svc.Create(ctx, author, CreateNoteParams{Title: title, Text: "Текст заметки"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Get(ctx, other, note.Slug); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("Get as other: expected ErrNoteNotFound, got %v", err)
	}
	if _, err := svc.Update(ctx, other, note.Slug, UpdateNoteParams{Title: "x", Text: "y", Slug: "hijack"}); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("Update as other: expected ErrNoteNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, other, note.Slug); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("Delete as other: expected ErrNoteNotFound, got %v", err)
	}
	if errs.CodeOf(ErrNoteNotFound) != errs.NotFound {
		t.Fatalf("ErrNoteNotFound must carry the not_found code")
	}

	got, err := svc.Get(ctx, author, note.Slug)
	if err != nil {
		t.Fatalf("Get as author failed: %v", err)
	}
	if got.Title != title || got.Slug != note.Slug {
		t.Fatalf("note changed by foreign writes: %+v", got)
	}

	if err := svc.Delete(ctx, author, note.Slug); err != nil {
		t.Fatalf("Delete as author failed: %v", err)
	}
	total, err := svc.CountAll(ctx)
	if err != nil || total != 0 {
		t.Fatalf("CountAll after delete = %d, %v", total, err)
	}
}

func TestOwnerOnly_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testOwnerOnly_Properties)
}

func FuzzOwnerOnly_Properties(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testOwnerOnly_Properties))
}

// =============================================================================
// Slug collisions
// =============================================================================

func TestCreate_DerivedSlugCollisionsGetSuffix(t *testing.T) {
	t.Parallel()
	svc, author, other := createInMemoryService(t)
	defer svc.db.Close()
	ctx := context.Background()

	var slugs []string
	for i := 0; i < 15; i++ {
		owner := author
		if i%2 == 1 {
			owner = other
		}
		note, err := svc.Create(ctx, owner, CreateNoteParams{Title: "Заметка", Text: "t"})
		if err != nil {
			t.Fatalf("Create #%d failed: %v", i, err)
		}
		slugs = append(slugs, note.Slug)
	}

	if slugs[0] != "zametka" || slugs[1] != "zametka-2" || slugs[14] != "zametka-15" {
		t.Fatalf("unexpected suffix sequence: %v", slugs)
	}
}

func TestCreate_LongTitleSuffixStaysWithinLimit(t *testing.T) {
	t.Parallel()
	svc, author, _ := createInMemoryService(t)
	defer svc.db.Close()
	ctx := context.Background()

	title := strings.Repeat("a", 100)
	first, err := svc.Create(ctx, author, CreateNoteParams{Title: title, Text: "t"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := svc.Create(ctx, author, CreateNoteParams{Title: title, Text: "t"})
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	third, err := svc.Create(ctx, author, CreateNoteParams{Title: title, Text: "t"})
	if err != nil {
		t.Fatalf("third Create failed: %v", err)
	}

	if first.Slug != title {
		t.Fatalf("expected full-length slug, got %q", first.Slug)
	}
	for _, n := range []*Note{second, third} {
		if len(n.Slug) > MaxSlugLength {
			t.Fatalf("slug %q exceeds %d", n.Slug, MaxSlugLength)
		}
	}
	if second.Slug != strings.Repeat("a", 98)+"-2" || third.Slug != strings.Repeat("a", 98)+"-3" {
		t.Fatalf("unexpected suffixed slugs: %q, %q", second.Slug, third.Slug)
	}
}

func TestCreate_ExplicitSlugTaken(t *testing.T) {
	t.Parallel()
	svc, author, other := createInMemoryService(t)
	defer svc.db.Close()
	ctx := context.Background()

	if _, err := svc.Create(ctx, author, CreateNoteParams{Title: "Заметка", Text: "t", Slug: "note_slug"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := svc.Create(ctx, other, CreateNoteParams{Title: "Other", Text: "t", Slug: "note_slug"})
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
	if errs.HTTPStatus(errs.CodeOf(err)) != 409 {
		t.Fatalf("expected 409 for taken slug, got %d", errs.HTTPStatus(errs.CodeOf(err)))
	}
}

func TestUpdate_KeepsAuthorAndChangesSlug(t *testing.T) {
	t.Parallel()
	svc, author, _ := createInMemoryService(t)
	defer svc.db.Close()
	ctx := context.Background()

	note, err := svc.Create(ctx, author, CreateNoteParams{Title: "Заметка", Text: "Текст заметки"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Same slug is not a collision with itself.
	if _, err := svc.Update(ctx, author, note.Slug, UpdateNoteParams{Title: "Заметка", Text: "new", Slug: note.Slug}); err != nil {
		t.Fatalf("Update with unchanged slug failed: %v", err)
	}

	updated, err := svc.Update(ctx, author, note.Slug, UpdateNoteParams{Title: "Заметка", Text: "Текст", Slug: "note_slug"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Slug != "note_slug" || updated.AuthorID != author {
		t.Fatalf("unexpected updated note: %+v", updated)
	}
	if _, err := svc.Get(ctx, author, note.Slug); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("old slug must be gone, got %v", err)
	}
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	t.Parallel()
	svc, author, _ := createInMemoryService(t)
	defer svc.db.Close()
	ctx := context.Background()

	cases := []CreateNoteParams{
		{Title: "", Text: "t"},
		{Title: "t", Text: ""},
		{Title: strings.Repeat("я", MaxTitleLength+1), Text: "t"},
		{Title: "t", Text: "t", Slug: "has space"},
		{Title: "t", Text: strings.Repeat("x", MaxTextBytes+1)},
	}
	for i, p := range cases {
		_, err := svc.Create(ctx, author, p)
		if !errs.Is(err, errs.InvalidArgument) {
			t.Fatalf("case %d: expected invalid_argument, got %v", i, err)
		}
	}
	if _, err := svc.Create(ctx, "", CreateNoteParams{Title: "t", Text: "t"}); !errs.Is(err, errs.Unauthenticated) {
		t.Fatalf("expected unauthenticated for empty author, got %v", err)
	}
}
