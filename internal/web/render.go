// Package web serves the HTML pages: home, the notes pages and the
// login, logout and signup pages.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// Templates holds the built-in page templates.
//
//go:embed templates
var Templates embed.FS

const layoutFile = "base.html"

// Renderer holds one parsed template set per page, each made of base.html
// plus the page's own blocks. Sets are built once and only read after.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every *.html page in fsys on top of base.html.
// fsys is usually the "templates" subtree of Templates.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	layout, err := fs.ReadFile(fsys, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", layoutFile, err)
	}

	pages := map[string]*template.Template{}
	err = fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || name == layoutFile || path.Ext(name) != ".html" {
			return err
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		t, err := template.New("base").Funcs(funcs).Parse(string(layout))
		if err == nil {
			t, err = t.Parse(string(body))
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, errors.New("no page templates found")
	}
	return &Renderer{pages: pages}, nil
}

// NewDefaultRenderer parses the embedded templates.
func NewDefaultRenderer() (*Renderer, error) {
	sub, err := fs.Sub(Templates, "templates")
	if err != nil {
		return nil, err
	}
	return NewRenderer(sub)
}

// Render writes page (e.g. "notes/list.html") with status 200.
func (r *Renderer) Render(w http.ResponseWriter, page string, data any) error {
	return r.RenderStatus(w, http.StatusOK, page, data)
}

// RenderStatus renders into a buffer first, so a failing template leaves
// w untouched and the caller can still send an error page.
func (r *Renderer) RenderStatus(w http.ResponseWriter, code int, page string, data any) error {
	t := r.pages[page]
	if t == nil {
		return fmt.Errorf("unknown template %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, err := buf.WriteTo(w)
	return err
}

// ErrorData is passed to error.html.
type ErrorData struct {
	PageData
	ErrorCode string
}

// RenderError shows error.html, falling back to plain text if that fails.
func (r *Renderer) RenderError(w http.ResponseWriter, code int, message string) {
	status := http.StatusText(code)
	data := ErrorData{PageData: PageData{Title: status, Error: message}, ErrorCode: status}
	if r.RenderStatus(w, code, "error.html", data) != nil {
		http.Error(w, fmt.Sprintf("Error %d: %s", code, message), code)
	}
}

var funcs = template.FuncMap{
	"formatTime": formatTime,
	"truncate":   truncate,
	"markdown":   renderMarkdown,
	"join":       strings.Join,
}

// formatTime prints t in UTC as "02.01.2006 15:04"; zero prints nothing.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("02.01.2006 15:04")
}

// truncate keeps at most n runes of s, spending the last three on "..."
// when it cuts.
func truncate(s string, n int) string {
	rs := []rune(s)
	switch {
	case n <= 0:
		return ""
	case len(rs) <= n:
		return s
	case n <= 3:
		return string(rs[:n])
	}
	return string(rs[:n-3]) + "..."
}

var ugc = bluemonday.UGCPolicy()

// renderMarkdown turns note text into HTML with scripts and unsafe
// attributes removed.
func renderMarkdown(s string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	out := markdown.ToHTML([]byte(s), p, r)
	return template.HTML(ugc.SanitizeBytes(out))
}
