// Package views renders the HTML pages from templates embedded in the binary.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Page names.
const (
	IndexPage   = "index.html"
	WelcomePage = "welcome.html"
)

// Page is the data shared by every page.
type Page struct {
	Title         string
	Flash         string
	StaticURLBase string
}

// IndexData feeds the landing page with the signup and signin forms.
type IndexData struct {
	Page
}

// WelcomeData feeds the profile page.
type WelcomeData struct {
	Page
	Username string
	Email    string
	ImageURL string
}

// Views holds the parsed page templates.
type Views struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Views, error) {
	views := &Views{pages: map[string]*template.Template{}}
	for _, page := range []string{IndexPage, WelcomePage} {
		parsed, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("in internal/views/views.go/New(): error while `template.ParseFS()` calling: %w", err)
		}
		views.pages[page] = parsed
	}

	return views, nil
}

// Render executes page into a buffer first so a template error never leaves
// a half-written response.
func (v *Views) Render(response http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := v.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, data); err != nil {
		return fmt.Errorf("in internal/views/views.go/Render(): error while `tmpl.ExecuteTemplate()` calling: %w", err)
	}

	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	response.WriteHeader(status)
	_, err := buf.WriteTo(response)

	return err
}
