// Package logutil renders submitted forms for log lines. Credential
// fields are masked and long values cut.
package logutil

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
)

const (
	masked    = "[REDACTED]"
	cutMarker = "... [truncated]"
)

var sensitiveParts = []string{"password", "token", "secret", "apikey", "cookie", "session"}

// Sensitive reports whether a form field or header named key should
// never appear in logs. Case, dashes and underscores are ignored.
func Sensitive(key string) bool {
	k := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(key)))
	if k == "authorization" {
		return true
	}
	for _, part := range sensitiveParts {
		if strings.Contains(k, part) {
			return true
		}
	}
	return false
}

// FormatFormForLog renders values as key="value" pairs sorted by key.
// Sensitive fields are masked; others are cut to maxChars runes.
func FormatFormForLog(values url.Values, maxChars int) string {
	if len(values) == 0 {
		return "{}"
	}

	var b strings.Builder
	for i, key := range slices.Sorted(maps.Keys(values)) {
		v := masked
		if !Sensitive(key) {
			v = Truncate(strings.Join(values[key], ","), maxChars)
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%q", key, v)
	}
	return b.String()
}

// Truncate flattens value onto one line and keeps at most maxChars runes.
// maxChars <= 0 disables the cut.
func Truncate(value string, maxChars int) string {
	flat := strings.ReplaceAll(strings.TrimSpace(value), "\n", `\n`)
	if maxChars <= 0 || len([]rune(flat)) <= maxChars {
		return flat
	}
	return string([]rune(flat)[:maxChars]) + cutMarker
}
