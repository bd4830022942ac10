package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"
)

const (
	FromName                  = "SoleStore"
	maxRetries                = 3
	WelcomeTemplate           = "welcome.tmpl"
	OrderConfirmationTemplate = "order_confirmation.tmpl"
	OrderStatusTemplate       = "order_status.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile, username, email string, data any) (int, error)
}

// Render executes the "subject" and "body" blocks of an embedded template.
// The body is HTML-escaped, the subject is plain text.
func Render(templateFile string, data any) (subject, body string, err error) {
	path := "templates/" + templateFile

	st, err := template.New(templateFile).Funcs(template.FuncMap(funcs)).ParseFS(FS, path)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", templateFile, err)
	}
	var sb bytes.Buffer
	if err := st.ExecuteTemplate(&sb, "subject", data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}

	bt, err := htmltemplate.New(templateFile).Funcs(funcs).ParseFS(FS, path)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", templateFile, err)
	}
	var bb bytes.Buffer
	if err := bt.ExecuteTemplate(&bb, "body", data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return sb.String(), bb.String(), nil
}

var funcs = htmltemplate.FuncMap{
	"money": func(cents int64) string {
		return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
	},
}
