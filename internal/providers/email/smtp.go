package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/jordan-wright/email"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var ErrNoRecipients = errors.New("email has no recipients")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

// Render executes the named template, e.g. "payment_receipt".
func Render(name string, data any) ([]byte, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name+".html", data); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return body.Bytes(), nil
}

func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	html, err := Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = p.cfg.From
	e.To = msg.To
	e.Subject = msg.Subject
	e.HTML = html
	for _, attachment := range msg.Attachments {
		if _, err := e.Attach(attachment.Content, attachment.Filename, attachment.ContentType); err != nil {
			return fmt.Errorf("attach %s: %w", attachment.Filename, err)
		}
	}

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
