// Package templates renders the HTML pages of the demo client
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
)

//go:embed html/*.html
var content embed.FS

// TemplateError describes a page that could not be rendered
type TemplateError struct {
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error { return e.Cause }

// Templates manages the HTML templates
type Templates struct {
	home     *template.Template
	complete *template.Template
	device   *template.Template
	error    *template.Template
}

// LoadTemplates loads and parses all HTML templates
func LoadTemplates() (*Templates, error) {
	t := &Templates{}
	var err error

	if t.home, err = parse("home"); err != nil {
		return nil, err
	}
	if t.complete, err = parse("complete"); err != nil {
		return nil, err
	}
	if t.device, err = parse("device"); err != nil {
		return nil, err
	}
	if t.error, err = parse("error"); err != nil {
		return nil, err
	}
	return t, nil
}

func parse(page string) (*template.Template, error) {
	// layout first so page definitions replace its block defaults
	tmpl, err := template.ParseFS(content, "html/layout.html", "html/"+page+".html")
	if err != nil {
		return nil, &TemplateError{Message: "parsing " + page, Cause: err}
	}
	return tmpl, nil
}

// HomeData holds data for the landing page
type HomeData struct {
	Provider string
	Scopes   string
}

// RenderHome renders the landing page
func (t *Templates) RenderHome(w http.ResponseWriter, data HomeData) error {
	return render(w, t.home, http.StatusOK, data)
}

// CompleteData holds data for the signed-in page
type CompleteData struct {
	Provider  string
	Grant     string
	Subject   string
	Name      string
	Email     string
	Scope     string
	ExpiresIn string
}

// RenderComplete renders the signed-in page
func (t *Templates) RenderComplete(w http.ResponseWriter, data CompleteData) error {
	return render(w, t.complete, http.StatusOK, data)
}

// DeviceData holds data for the device authorization page
type DeviceData struct {
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	StatusURL               string
	ExpiresIn               int64
}

// RenderDevice renders the device authorization page
func (t *Templates) RenderDevice(w http.ResponseWriter, data DeviceData) error {
	return render(w, t.device, http.StatusOK, data)
}

// ErrorData holds data for the error page
type ErrorData struct {
	Title   string
	Message string
	Code    string
}

// RenderError renders the error page with the given status code
func (t *Templates) RenderError(w http.ResponseWriter, status int, data ErrorData) error {
	return render(w, t.error, status, data)
}

// render executes into a buffer so a failing template never leaves a
// partial page on the wire
func render(w http.ResponseWriter, tmpl *template.Template, status int, data any) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return &TemplateError{Message: "executing layout", Cause: err}
	}

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}
