// Package templates renders the HTML pages served during account linking
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed html/*.html
var content embed.FS

// TemplateError wraps a failure to render a page
type TemplateError struct {
	Cause   error
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// Templates holds the parsed pages
type Templates struct {
	login *template.Template
	error *template.Template
}

// LoadTemplates parses the embedded pages
func LoadTemplates() (*Templates, error) {
	t := &Templates{}
	var err error

	if t.login, err = template.ParseFS(content, "html/layout.html", "html/login.html"); err != nil {
		return nil, &TemplateError{Cause: err, Message: "parsing login page"}
	}
	if t.error, err = template.ParseFS(content, "html/layout.html", "html/error.html"); err != nil {
		return nil, &TemplateError{Cause: err, Message: "parsing error page"}
	}
	return t, nil
}

// LoginData holds data for the login page
type LoginData struct {
	Action    string // form target
	CSRFToken string // omitted from the form when empty
}

// RenderLogin renders the login page
func (t *Templates) RenderLogin(w io.Writer, data LoginData) error {
	if data.Action == "" {
		data.Action = "/auth"
	}
	return render(w, t.login, data)
}

// ErrorData holds data for the error page
type ErrorData struct {
	Title   string
	Message string
}

// RenderError renders the error page
func (t *Templates) RenderError(w io.Writer, data ErrorData) error {
	return render(w, t.error, data)
}

// render executes into a buffer so a failed page never reaches w half written
func render(w io.Writer, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return &TemplateError{Cause: err, Message: "failed to render template"}
	}
	if _, err := buf.WriteTo(w); err != nil {
		return &TemplateError{Cause: err, Message: "failed to write response"}
	}
	return nil
}
