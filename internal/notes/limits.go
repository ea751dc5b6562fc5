package notes

import (
	"fmt"
	"unicode/utf8"

	"github.com/kuitang/yanote/internal/errs"
)

const (
	// MaxTitleLength is the maximum title length in characters
	MaxTitleLength = 100

	// MaxSlugLength is the maximum slug length in characters
	MaxSlugLength = 100

	// MaxTextBytes is the maximum note text size (1MB)
	MaxTextBytes = 1 << 20
)

// CheckLimits validates the stored fields of a note before a write.
// Forms report the same problems per field; this guards other callers.
func CheckLimits(title, text, slug string) error {
	if title == "" {
		return errs.New(errs.InvalidArgument, "title is required")
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleLength {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("title is %d characters, limit is %d", n, MaxTitleLength))
	}
	if text == "" {
		return errs.New(errs.InvalidArgument, "text is required")
	}
	if len(text) > MaxTextBytes {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("text is %d bytes, limit is %d", len(text), MaxTextBytes))
	}
	if len(slug) > MaxSlugLength {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("slug is %d characters, limit is %d", len(slug), MaxSlugLength))
	}
	if slug != "" && !IsValidSlug(slug) {
		return errs.New(errs.InvalidArgument, "slug may contain only letters, numbers, underscores or hyphens")
	}
	return nil
}
