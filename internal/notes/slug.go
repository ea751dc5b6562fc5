package notes

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

const (
	// FallbackSlug is used when a title has nothing to transliterate.
	FallbackSlug = "note"

	// MaxSlugCollisionRetries bounds the suffix search for a derived slug.
	MaxSlugCollisionRetries = 10
)

var validSlug = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// IsValidSlug reports whether s is usable as a note slug in a URL.
func IsValidSlug(s string) bool {
	return validSlug.MatchString(s)
}

// cyrillicTranslit is the Russian and Ukrainian romanization used for
// derived slugs: й is "j", х is "h", щ is "sch", hard and soft signs vanish.
var cyrillicTranslit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "j", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch", 'ъ': "",
	'ы': "yi", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	'є': "ye", 'і': "i", 'ї': "yi", 'ґ': "g",
	'\u2013': "-", '\u2014': "-",
}

var (
	ampersands = strings.NewReplacer("&amp;", " and ", "&", " and ")
	separators = regexp.MustCompile(`[-\s\v\p{Z}]+`)
)

// Slugify lowercases title, joins words with hyphens, drops characters
// outside Latin, digits and Cyrillic, transliterates the Cyrillic and
// keeps the first MaxSlugLength characters.
//
// "Заметка 1" becomes "zametka-1".
func Slugify(title string) string {
	s := ampersands.Replace(strings.ToLower(title))
	s = separators.ReplaceAllString(s, "-")
	s = strings.Map(keepSlugRune, s)
	// Only ASCII is left after transliteration, so bytes are characters.
	s = slug.SubstituteRune(s, cyrillicTranslit)
	if len(s) > MaxSlugLength {
		s = s[:MaxSlugLength]
	}
	if s == "" {
		return FallbackSlug
	}
	return s
}

func keepSlugRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		return r
	}
	if _, ok := cyrillicTranslit[r]; ok {
		return r
	}
	return -1
}

// WithSuffix returns base with "-n" appended, shortening base so the
// result stays within MaxSlugLength.
func WithSuffix(base string, n int) string {
	suffix := "-" + strconv.Itoa(n)
	base = truncateSlug(base, MaxSlugLength-len(suffix))
	if base == "" {
		base = FallbackSlug
	}
	return base + suffix
}

// suffixPattern matches every WithSuffix(base, n) for n below 10^7.
// Long bases are shortened by WithSuffix, so only a prefix is anchored.
func suffixPattern(base string) string {
	prefix := truncateSlug(base, MaxSlugLength-8)
	return "^" + regexp.QuoteMeta(prefix) + `[-a-z0-9_]*-[0-9]+$`
}

// nextFreeSuffix picks the smallest n >= 2 such that WithSuffix(base, n) is not in taken.
func nextFreeSuffix(base string, taken []string) int {
	used := make(map[string]bool, len(taken))
	for _, s := range taken {
		used[s] = true
	}
	n := 2
	for used[WithSuffix(base, n)] {
		n++
	}
	return n
}

// truncateSlug cuts s to at most max bytes without leaving a trailing separator.
func truncateSlug(s string, max int) string {
	if len(s) > max {
		s = s[:max]
	}
	return strings.TrimRight(s, "-_")
}
