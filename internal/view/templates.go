package view

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/odyssey-erp/itasset/internal/dashboard"
	"github.com/odyssey-erp/itasset/web"
)

// DashboardPage is the template name of the dashboard page.
const DashboardPage = "pages/dashboard.html"

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across simple pages.
type TemplateData struct {
	Title     string
	CSRFToken string
	Data      any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	funcMap := dashboard.TemplateFuncs()
	funcMap["formatDate"] = func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006 15:04")
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// ExecuteTemplate executes a named template with arbitrary data.
func (e *Engine) ExecuteTemplate(w io.Writer, name string, data any) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// Dashboard returns the page renderer for the dashboard.
func (e *Engine) Dashboard() *dashboard.HTMLRenderer {
	return dashboard.NewHTMLRenderer(e, DashboardPage)
}
