// Package notify renders lifecycle emails and hands them to a transport.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/smtp"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrNotConfigured = errors.New("email not configured")

// Dispatcher delivers one rendered template to recipients.
type Dispatcher interface {
	Send(ctx context.Context, templateID string, data any, recipients []string) error
}

// SMTPConfig holds SMTP configuration.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type SMTPDispatcher struct {
	config   SMTPConfig
	server   string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPDispatcher(config SMTPConfig) *SMTPDispatcher {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &SMTPDispatcher{
		config:   config,
		server:   config.Host + ":" + config.Port,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

func (d *SMTPDispatcher) IsConfigured() bool {
	return d.config.Host != "" && d.config.Port != "" && d.config.From != ""
}

func (d *SMTPDispatcher) Send(_ context.Context, templateID string, data any, recipients []string) error {
	if !d.IsConfigured() {
		return ErrNotConfigured
	}
	if len(recipients) == 0 {
		return nil
	}
	msg, err := Render(templateID, data)
	if err != nil {
		return err
	}

	// One message per recipient; no address appears in another's headers.
	var errs []error
	for _, to := range recipients {
		if err := d.sendMail(d.server, d.auth, d.config.From, []string{to}, buildMIME(d.fromHeader(), to, msg)); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

func (d *SMTPDispatcher) fromHeader() string {
	if d.config.FromName == "" {
		return d.config.From
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", d.config.FromName), d.config.From)
}

func buildMIME(from, to string, msg Message) []byte {
	const boundary = "civicwatch-alt"

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n", msg.Text)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n", msg.HTML)
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

const sendGridHost = "https://api.sendgrid.com"

// SendGridDispatcher sends through the SendGrid v3 mail API.
type SendGridDispatcher struct {
	apiKey   string
	host     string
	from     string
	fromName string
}

func NewSendGridDispatcher(apiKey, from, fromName string) *SendGridDispatcher {
	return &SendGridDispatcher{apiKey: apiKey, host: sendGridHost, from: from, fromName: fromName}
}

func (d *SendGridDispatcher) IsConfigured() bool {
	return d.apiKey != "" && d.from != ""
}

func (d *SendGridDispatcher) Send(ctx context.Context, templateID string, data any, recipients []string) error {
	if !d.IsConfigured() {
		return ErrNotConfigured
	}
	if len(recipients) == 0 {
		return nil
	}
	msg, err := Render(templateID, data)
	if err != nil {
		return err
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(d.fromName, d.from))
	m.Subject = msg.Subject
	// Separate personalizations: recipients do not see each other.
	for _, to := range recipients {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail("", to))
		m.AddPersonalizations(p)
	}
	m.AddContent(mail.NewContent("text/plain", msg.Text), mail.NewContent("text/html", msg.HTML))

	request := sendgrid.GetRequest(d.apiKey, "/v3/mail/send", d.host)
	request.Method = rest.Post
	request.Body = mail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogDispatcher only logs what would have been sent. Used when no transport is configured.
type LogDispatcher struct{}

func (LogDispatcher) Send(_ context.Context, templateID string, data any, recipients []string) error {
	msg, err := Render(templateID, data)
	if err != nil {
		return err
	}
	log.Printf("[NOTIFY] email transport not configured; %q to %v not sent", msg.Subject, recipients)
	return nil
}
