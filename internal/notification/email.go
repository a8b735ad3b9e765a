package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/protocol"
	"github.com/smukkama/prayer-server/pkg/config"
)

var alertTemplate = template.Must(template.New("alert").Parse(`
Prayer Time Reached
===================

Prayer: {{.Prayer}}
Time: {{.AdjustedTime}}{{if .OffsetMin}} (offset {{.OffsetMin}} min){{end}}
Place: {{.Place}}
{{- if .Hijri}}
Hijri: {{.Hijri}}
{{- end}}
Scheduled: {{.ScheduledAt.Format "2006-01-02 15:04 MST"}}
Alert ID: {{.AlertID}}

---
Prayer Server Notification System
`))

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config config.SMTPConfig
	logger zerolog.Logger
	send   sendFunc
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg config.SMTPConfig, logger zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		config: cfg,
		logger: logger.With().Str("component", "email").Logger(),
		send:   smtp.SendMail,
	}
}

// Configured reports whether SMTP credentials are present
func (e *EmailNotifier) Configured() bool {
	return e.config.Username != "" && e.config.Password != ""
}

// SendPrayerAlert sends an email for a fired prayer alert
func (e *EmailNotifier) SendPrayerAlert(alert *protocol.AlertNotification) error {
	if alert.Type != protocol.AlertTypeFired {
		return fmt.Errorf("unknown notification type: %s", alert.Type)
	}

	subject := fmt.Sprintf("%s %s - %s", alert.Prayer, alert.AdjustedTime, alert.Place)
	body, err := RenderAlert(alert)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

// RenderAlert renders the plain-text body of an alert email
func RenderAlert(alert *protocol.AlertNotification) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, alert); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	if !e.Configured() {
		e.logger.Info().Str("subject", subject).Msg("SMTP not configured, skipping email")
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info().Str("subject", subject).Msg("email sent")
	return nil
}

// TestConnection checks that the SMTP server is reachable
func (e *EmailNotifier) TestConnection() error {
	if !e.Configured() {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	return nil
}
