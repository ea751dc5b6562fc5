package notes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSlugify_CyrillicTitle(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Заметка 1":   "zametka-1",
		"Заметка":     "zametka",
		"Список дел":  "spisok-del",
		"Hello World": "hello-world",
		"!!!":         FallbackSlug,
		"":            FallbackSlug,
	}
	for title, want := range cases {
		if got := Slugify(title); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", title, got, want)
		}
	}
}

func TestSlugify_Transliteration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title string
		want  string
	}{
		{"Мой хороший день", "moj-horoshij-den"},
		{"Щука и ящерица", "schuka-i-yascheritsa"},
		{"Юля", "yulya"},
		{"Ёжик в тумане", "yozhik-v-tumane"},
		{"Подъезд", "podezd"},
		{"объявление", "obyavlenie"},
		{"Цирк", "tsirk"},
		{"Мыши", "myishi"},
		{"Їжак і ґанок", "yizhak-i-ganok"},
		{"Чай & кофе", "chaj-and-kofe"},
		{"Café: план!", "caf-plan"},
		{"  отступ ", "-otstup-"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.title), "Slugify(%q)", tc.title)
	}
}

func TestSlugify_TruncatesWithoutTrimming(t *testing.T) {
	t.Parallel()

	got := Slugify(strings.Repeat("a", 99) + " b")
	assert.Equal(t, strings.Repeat("a", 99)+"-", got)
	assert.Len(t, got, MaxSlugLength)

	long := Slugify(strings.Repeat("щ", 40))
	assert.Equal(t, strings.Repeat("sch", 33)+"s", long)
}

// =============================================================================
// Property: slugs are bounded, URL-safe and stable under re-slugging
// =============================================================================

func testSlugify_Properties(t *rapid.T) {
	title := rapid.OneOf(
		rapid.String(),
		rapid.StringMatching(`[а-яА-ЯёЁ ]{0,150}`),
		rapid.StringMatching(`[a-zA-Z0-9 _-]{0,250}`),
	).Draw(t, "title")

	s := Slugify(title)
	if s == "" {
		t.Fatalf("Slugify(%q) is empty", title)
	}
	if len(s) > MaxSlugLength {
		t.Fatalf("Slugify(%q) has %d chars", title, len(s))
	}
	if !IsValidSlug(s) {
		t.Fatalf("Slugify(%q) = %q is not a valid slug", title, s)
	}
	if s != strings.ToLower(s) {
		t.Fatalf("Slugify(%q) = %q is not lowercase", title, s)
	}
	if strings.Contains(s, "--") {
		return
	}
	if again := Slugify(s); again != s {
		t.Fatalf("Slugify not idempotent: %q -> %q", s, again)
	}
}

func TestSlugify_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testSlugify_Properties)
}

func FuzzSlugify_Properties(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testSlugify_Properties))
}

// =============================================================================
// Property: suffixed slugs fit and are matched by the lookup pattern
// =============================================================================

func testWithSuffix_Properties(t *rapid.T) {
	base := Slugify(rapid.StringMatching(`[a-z]{1,120}`).Draw(t, "title"))
	n := rapid.IntRange(2, 1_000_000).Draw(t, "n")

	s := WithSuffix(base, n)
	if len(s) > MaxSlugLength {
		t.Fatalf("WithSuffix(%q, %d) = %q exceeds limit", base, n, s)
	}
	if !IsValidSlug(s) {
		t.Fatalf("WithSuffix(%q, %d) = %q is not a valid slug", base, n, s)
	}
	if !matchesPattern(t, suffixPattern(base), s) {
		t.Fatalf("pattern %q does not match %q", suffixPattern(base), s)
	}
}

func TestWithSuffix_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testWithSuffix_Properties)
}

func TestNextFreeSuffix(t *testing.T) {
	t.Parallel()

	if n := nextFreeSuffix("plan", []string{"plan"}); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	if n := nextFreeSuffix("plan", []string{"plan", "plan-2", "plan-3", "plan-5"}); n != 4 {
		t.Fatalf("expected 4, got %d", n)
	}
}
