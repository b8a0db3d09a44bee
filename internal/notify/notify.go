// Package notify e-mails the CSV export to a fixed recipient over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/timvw/persona-survey/internal/logger"
)

// Defaults for the export e-mail.
const (
	DefaultHost    = "smtp.gmail.com"
	DefaultPort    = 465
	DefaultSubject = "File from Website"
	DefaultBody    = "File Attached"
	DefaultTimeout = 30 * time.Second
)

// TLS modes accepted by Config.TLS.
const (
	TLSImplicit = "ssl"
	TLSStartTLS = "starttls"
	TLSNone     = "none"
)

// ErrNotConfigured is returned when sender or recipient is missing.
var ErrNotConfigured = errors.New("smtp sender and recipient must be configured")

// Mailer sends a file as an e-mail attachment.
type Mailer interface {
	Send(ctx context.Context, attachmentPath string) error
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLS is "ssl" (implicit TLS, default), "starttls" or "none".
	TLS     string
	From    string
	To      string
	Subject string
	Body    string
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TLS == "" {
		c.TLS = TLSImplicit
	}
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.Body == "" {
		c.Body = DefaultBody
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Username == "" {
		c.Username = c.From
	}
	return c
}

// SMTPMailer delivers mail through an authenticated SMTP server.
type SMTPMailer struct {
	cfg Config
	log *logger.Logger
}

// NewSMTPMailer validates cfg and fills defaults.
func NewSMTPMailer(cfg Config, logg *logger.Logger) (*SMTPMailer, error) {
	cfg = cfg.withDefaults()
	if cfg.From == "" || cfg.To == "" {
		return nil, ErrNotConfigured
	}
	switch cfg.TLS {
	case TLSImplicit, TLSStartTLS, TLSNone:
	default:
		return nil, fmt.Errorf("unknown smtp tls mode %q", cfg.TLS)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &SMTPMailer{cfg: cfg, log: logg.With("service", "SMTPMailer", "host", cfg.Host)}, nil
}

// Send attaches the file at attachmentPath and delivers the message.
func (m *SMTPMailer) Send(ctx context.Context, attachmentPath string) error {
	msg, err := m.message(attachmentPath)
	if err != nil {
		return err
	}
	client, err := m.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.log.Info("export mailed", "attachment", filepath.Base(attachmentPath), "elapsed", time.Since(start))
	return nil
}

func (m *SMTPMailer) message(attachmentPath string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(splitAddresses(m.cfg.To)...); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(m.cfg.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.cfg.Body)
	msg.AttachFile(attachmentPath,
		mail.WithFileName(filepath.Base(attachmentPath)),
		mail.WithFileContentType(mail.ContentType("text/csv")))
	return msg, nil
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
	}
	switch m.cfg.TLS {
	case TLSImplicit:
		opts = append(opts, mail.WithSSL())
	case TLSStartTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	case TLSNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if m.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password))
	}
	c, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return c, nil
}

func splitAddresses(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
