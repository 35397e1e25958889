// Package email delivers report mail through SendGrid, with a legacy
// SMTP fallback for installs without an API key.
package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	gomail "gopkg.in/gomail.v2"
)

// ErrNoProvider is returned when neither SendGrid nor SMTP is
// configured.
var ErrNoProvider = errors.New("no email provider configured")

// fallbackBody is sent when a message carries no body at all.
const fallbackBody = "Please find attached report."

// Attachment is one file to attach to a message.
type Attachment struct {
	Filename string
	Type     string
	Content  []byte
}

// Message is one outbound email.
type Message struct {
	Recipient   string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Config holds provider credentials and identity.
type Config struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPass       string
	SendTimeout    time.Duration
}

// Sender sends messages through the first configured provider.
// SendGrid is preferred; SMTP is tried when SendGrid is missing or
// fails.
type Sender struct {
	config Config
	logger *slog.Logger
}

// NewSender creates a sender and warns about incomplete configuration
// the way operators expect to see it at startup.
func NewSender(config Config, logger *slog.Logger) *Sender {
	if config.SMTPHost == "" {
		config.SMTPHost = "smtp.gmail.com"
	}
	if config.SMTPPort == 0 {
		config.SMTPPort = 465
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 30 * time.Second
	}
	if config.FromName == "" {
		config.FromName = "Report Bot"
	}

	if config.SendGridAPIKey == "" {
		logger.Warn("SendGrid API key not set; will attempt SMTP fallback if configured")
	}
	if config.FromEmail == "" {
		logger.Warn("From email not set; emails may be rejected")
	}

	return &Sender{config: config, logger: logger}
}

// Provider names the provider a send would use, for health reporting.
func (s *Sender) Provider() string {
	switch {
	case s.config.SendGridAPIKey != "":
		return "sendgrid"
	case s.smtpConfigured():
		return "smtp"
	default:
		return ""
	}
}

func (s *Sender) smtpConfigured() bool {
	return s.config.SMTPUser != "" && s.config.SMTPPass != ""
}

// Send delivers one message. A SendGrid failure falls through to SMTP
// when SMTP credentials exist; otherwise the SendGrid error is
// returned.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
	defer cancel()

	if s.config.SendGridAPIKey != "" {
		err := s.sendViaSendGrid(ctx, msg)
		if err == nil {
			s.logger.Info("Email sent via SendGrid", slog.String("recipient", msg.Recipient))
			return nil
		}
		if !s.smtpConfigured() {
			return fmt.Errorf("sendgrid send failed: %w", err)
		}
		s.logger.Error("SendGrid send failed, falling back to SMTP", slog.Any("error", err))
	}

	if s.smtpConfigured() {
		if err := s.sendViaSMTP(ctx, msg); err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		s.logger.Info("Email sent via SMTP", slog.String("recipient", msg.Recipient))
		return nil
	}

	return ErrNoProvider
}

func (s *Sender) sendViaSendGrid(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.config.FromName, s.config.FromEmail)
	to := mail.NewEmail("", msg.Recipient)

	text := msg.Text
	if text == "" && msg.HTML == "" {
		text = fallbackBody
	}

	m := mail.NewV3Mail()
	m.SetFrom(from)
	p := mail.NewPersonalization()
	p.AddTos(to)
	p.Subject = msg.Subject
	m.AddPersonalizations(p)

	if text != "" {
		m.AddContent(mail.NewContent("text/plain", text))
	}
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}

	for _, a := range msg.Attachments {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetType(attachmentType(a))
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		m.AddAttachment(att)
	}

	client := sendgrid.NewSendClient(s.config.SendGridAPIKey)
	resp, err := client.SendWithContext(ctx, m)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *Sender) sendViaSMTP(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.config.FromEmail, s.config.FromName)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", msg.Subject)

	text := msg.Text
	if text == "" {
		text = fallbackBody
	}
	m.SetBody("text/plain", text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	for _, a := range msg.Attachments {
		content := a.Content
		m.Attach(a.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUser, s.config.SMTPPass)
	d.SSL = true

	// gomail has no context support; bound it from outside.
	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func attachmentType(a Attachment) string {
	if a.Type == "" {
		return "application/octet-stream"
	}
	return a.Type
}
