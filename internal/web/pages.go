package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/tunebox/pkg"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	pageAuth = "auth"
	pageHome = "home"
)

// AuthPageData fills the login and signup forms. Passwords are never
// echoed back.
type AuthPageData struct {
	ShowSignup   bool
	LoginEmail   string
	RememberMe   bool
	LoginErrors  map[string]string
	SignupEmail  string
	SignupName   string
	SignupErrors map[string]string
}

type HomePageData struct {
	Name  string
	Email string
}

type Pages struct {
	templates map[string]*template.Template
}

func NewPages() (*Pages, error) {
	base := template.New("layout.html")

	pages := map[string]string{
		pageAuth: "templates/auth.html",
		pageHome: "templates/index.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone base template: %w", err)
		}
		if _, err := t.ParseFS(templatesFS, "templates/layout.html", file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Pages{templates: templates}, nil
}

func (p *Pages) Render(w http.ResponseWriter, page string, statusCode int, data any) {
	t, ok := p.templates[page]
	if !ok {
		log.Errorf("render: unknown page %s", page)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Errorf("render page %s: %s", page, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.HTML, buf.Bytes(), statusCode)
}
