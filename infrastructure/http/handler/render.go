package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/hiprotech/portal/domain/entity"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "layout.html"

// pageData is what every page template receives.
type pageData struct {
	Title   string
	Session entity.Session
	Error   string
	Flash   string
	Form    map[string]string
	Data    interface{}
}

// Renderer holds one parsed template set per page, each joined with the
// shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"isAdmin": func(s entity.Session) bool { return s.User.HasRole(entity.RoleAdmin) },
	"money":   func(v float64) string { return fmt.Sprintf("$%.2f", v) },
}

func NewRenderer() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template)
	for _, file := range files {
		base := path.Base(file)
		if base == layoutTemplate {
			continue
		}
		t, err := template.New(layoutTemplate).
			Option("missingkey=zero").
			Funcs(templateFuncs).
			ParseFS(templateFS, "templates/"+layoutTemplate, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", base, err)
		}
		pages[strings.TrimSuffix(base, ".html")] = t
	}
	return &Renderer{pages: pages}, nil
}

// Render executes page into a buffer first so a template error never
// leaves a half-written response.
func (rd *Renderer) Render(w http.ResponseWriter, status int, page string, data pageData) error {
	t, ok := rd.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
