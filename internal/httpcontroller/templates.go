package httpcontroller

import (
	"bytes"
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/skybound/skybound/internal/conf"
	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
	"github.com/skybound/skybound/internal/observability/metrics"
)

//go:embed views/*.html
var viewsFS embed.FS

// layoutTemplate wraps every page.
const layoutTemplate = "layout"

// PageData represents data for rendering a page.
type PageData struct {
	Page     string // content template rendered inside the layout
	Title    string
	User     *model.User
	CSRF     string
	Flashes  []Flash
	Settings *conf.Settings
	Data     any
}

// TemplateRenderer is a custom HTML template renderer for Echo framework.
type TemplateRenderer struct {
	templates *template.Template
	metrics   *metrics.HTTPMetrics
	log       logger.Logger
}

// Render renders a template with the given data. Output is buffered so a
// failing template never leaves a half written page.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, name, data); err != nil {
		t.metrics.RecordTemplateRenderError(name)
		t.log.Error("template render failed", logger.String("template", name), logger.Error(err))
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryTemplate).
			Context("template", name).
			Build()
	}
	_, err := buf.WriteTo(w)
	return err
}

// renderContent renders the page template named by d.Page.
func (t *TemplateRenderer) renderContent(d PageData) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, d.Page, d); err != nil {
		return "", err
	}
	// #nosec G203 -- output of html/template, already escaped
	return template.HTML(buf.String()), nil
}

// setupTemplateRenderer parses the embedded views.
func (s *Server) setupTemplateRenderer() error {
	renderer := &TemplateRenderer{metrics: s.httpMetrics(), log: s.log}

	funcMap := s.GetTemplateFunctions()
	funcMap["RenderContent"] = renderer.renderContent

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(viewsFS, "views/*.html")
	if err != nil {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryTemplate).
			Context("operation", "parse-views").
			Build()
	}
	renderer.templates = tmpl
	s.Echo.Renderer = renderer
	return nil
}

// render renders page inside the layout with the request's user, CSRF
// token and pending flash messages.
func (s *Server) render(c echo.Context, status int, page, title string, data any) error {
	csrf, _ := c.Get(CSRFContextKey).(string)
	return c.Render(status, layoutTemplate, PageData{
		Page:     page,
		Title:    title,
		User:     currentUser(c),
		CSRF:     csrf,
		Flashes:  s.popFlashes(c),
		Settings: s.Settings,
		Data:     data,
	})
}
