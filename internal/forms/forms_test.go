package forms

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"pgregory.net/rapid"
)

type sampleForm struct {
	Title    string `form:"title" validate:"required,max=10"`
	Slug     string `form:"slug" validate:"omitempty,slug"`
	Body     string `form:"body" validate:"maxbytes=8"`
	Username string `form:"username" validate:"omitempty,username"`
	Pass1    string `form:"password1"`
	Pass2    string `form:"password2" validate:"eqfield=Pass1"`
}

func TestValidate_ReportsByFormName(t *testing.T) {
	t.Parallel()

	errs := Validate(&sampleForm{Title: "", Slug: "bad slug!", Body: "123456789", Pass1: "a", Pass2: "b"})
	for _, field := range []string{"title", "slug", "body", "password2"} {
		if !errs.Has(field) {
			t.Fatalf("expected error for %q, got %v", field, errs)
		}
	}
	if errs.First("title") != "This field is required." {
		t.Fatalf("unexpected title message: %q", errs.First("title"))
	}
	if errs.Has("Title") {
		t.Fatal("errors must be keyed by form name, not Go field name")
	}
}

func TestValidate_ValidFormHasNoErrors(t *testing.T) {
	t.Parallel()

	errs := Validate(&sampleForm{Title: "Заметка", Slug: "note_slug-1", Body: "ok", Username: "Автор", Pass1: "x", Pass2: "x"})
	if errs.Any() {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidate_MaxCountsCharactersNotBytes(t *testing.T) {
	t.Parallel()

	// Ten Cyrillic letters are twenty bytes but within max=10.
	errs := Validate(&sampleForm{Title: strings.Repeat("ж", 10)})
	if errs.Has("title") {
		t.Fatalf("unexpected title error: %v", errs["title"])
	}
	errs = Validate(&sampleForm{Title: strings.Repeat("ж", 11)})
	if got := errs.First("title"); got != "Ensure this value has at most 10 characters (it has 11)." {
		t.Fatalf("unexpected message: %q", got)
	}
}

// ============================================================================
// Property: the slug rule accepts exactly [-a-zA-Z0-9_]+
// ============================================================================

func testSlugRule_MatchesCharset(t *rapid.T) {
	s := rapid.String().Draw(t, "slug")
	want := s != ""
	for _, r := range s {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			want = false
			break
		}
	}
	got := !Validate(&sampleForm{Title: "t", Slug: s}).Has("slug")
	if s == "" {
		// omitempty
		got = false
	}
	if got != want {
		t.Fatalf("slug %q: valid=%v, want %v", s, got, want)
	}
}

func TestSlugRule_MatchesCharset(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testSlugRule_MatchesCharset)
}

func FuzzSlugRule_MatchesCharset(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testSlugRule_MatchesCharset))
}

func TestRegisterCustomValidators(t *testing.T) {
	t.Parallel()

	v := validator.New()
	if err := RegisterCustomValidators(v); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := v.Var("bad slug", "slug"); err == nil {
		t.Fatal("slug rule not registered")
	}
	if err := v.Var("good-slug", "slug"); err != nil {
		t.Fatalf("good-slug rejected: %v", err)
	}
}

func TestRegisterRules_ReturnsRegistrationError(t *testing.T) {
	t.Parallel()

	err := registerRules(validator.New(), []customRule{
		{"slug", ValidateSlugRule},
		{"", ValidateSlugRule},
	})
	if err == nil {
		t.Fatal("expected an error for an empty rule tag")
	}
}

func TestErrors_Helpers(t *testing.T) {
	t.Parallel()

	e := Errors{}
	if e.Any() || e.First("x") != "" {
		t.Fatal("empty Errors must report nothing")
	}
	e.Add(NonFieldErrors, "boom")
	e.Add(NonFieldErrors, "again")
	if !e.Any() || e.First(NonFieldErrors) != "boom" || len(e[NonFieldErrors]) != 2 {
		t.Fatalf("unexpected state: %v", e)
	}
}
