package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// SMTPConfig carries mail delivery settings.
type SMTPConfig struct {
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients"`
}

// Configured reports whether mail can be sent at all.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && len(c.Recipients) > 0
}

// Mailer emails the report workbook to the configured recipients.
type Mailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewMailer creates a mailer.
func NewMailer(cfg SMTPConfig, logger *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// SendReport mails a plain-text body with the workbook attached. An
// empty attachment path sends the body alone.
func (m *Mailer) SendReport(subject, body, attachmentPath string) error {
	if !m.cfg.Configured() {
		return errors.New("mail not configured: need smtp host and at least one recipient")
	}

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = m.cfg.Recipients
	e.Subject = subject
	e.Text = []byte(body)

	if attachmentPath != "" {
		if _, err := e.AttachFile(attachmentPath); err != nil {
			return fmt.Errorf("attach report: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	m.logger.Info("report mailed", "recipients", len(m.cfg.Recipients), "subject", subject)
	return nil
}
