package logutil

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// ====
// Passwords never reach a log line; other fields do.
// ====

func testFormatForm_MasksCredentials(t *rapid.T) {
	secret := rapid.StringMatching(`[A-Za-z0-9]{4,20}[!@#][A-Za-z0-9]{3,20}`).Draw(t, "secret")
	field := rapid.SampledFrom([]string{"password", "password1", "password2", "csrf_token", "New-Password"}).Draw(t, "field")
	username := rapid.StringMatching(`[a-z]{3,12}`).Draw(t, "username")

	values := url.Values{}
	values.Set(field, secret)
	values.Set("username", username)

	out := FormatFormForLog(values, 64)
	if strings.Contains(out, secret) {
		t.Fatalf("secret leaked: %q", out)
	}
	if !strings.Contains(out, `username="`+username+`"`) {
		t.Fatalf("username missing: %q", out)
	}
}

func TestFormatForm_MasksCredentials(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testFormatForm_MasksCredentials)
}

func FuzzFormatForm_MasksCredentials(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testFormatForm_MasksCredentials))
}

func TestFormatForm_SortedAndTruncated(t *testing.T) {
	t.Parallel()
	values := url.Values{"title": {"Заметка"}, "text": {"строка один\nстрока два"}}

	assert.Equal(t, `text="строка оди... [truncated]" title="Заметка"`, FormatFormForLog(values, 10))
	assert.Equal(t, "{}", FormatFormForLog(nil, 10))
}

func TestSensitive(t *testing.T) {
	t.Parallel()
	for key, want := range map[string]bool{
		"Authorization": true,
		"session_id":    true,
		"X-Api-Key":     true,
		"title":         false,
		"slug":          false,
	} {
		assert.Equal(t, want, Sensitive(key), key)
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Заметка... [truncated]", Truncate("Заметка номер один", 7))
	assert.Equal(t, "short", Truncate("  short  ", 0))
}
