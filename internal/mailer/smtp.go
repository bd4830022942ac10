package mailer

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

type sender interface {
	DialAndSend(m ...*mail.Message) error
}

type SMTPMailer struct {
	sender    sender
	fromEmail string
	backoff   time.Duration
	logger    *zap.SugaredLogger
}

func NewSMTP(host string, port int, username, password, fromEmail string, logger *zap.SugaredLogger) *SMTPMailer {
	d := mail.NewDialer(host, port, username, password)
	d.Timeout = 10 * time.Second
	return &SMTPMailer{
		sender:    d,
		fromEmail: fromEmail,
		backoff:   time.Second,
		logger:    logger,
	}
}

// Send renders the template and delivers it, retrying with a linear
// backoff. The returned status is 200 on success and -1 on failure.
func (m *SMTPMailer) Send(templateFile, username, email string, data any) (int, error) {
	subject, body, err := Render(templateFile, data)
	if err != nil {
		return -1, err
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, FromName)
	msg.SetAddressHeader("To", email, username)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if lastErr = m.sender.DialAndSend(msg); lastErr == nil {
			return 200, nil
		}
		m.logger.Warnw("failed to send email", "to", email, "template", templateFile, "attempt", attempt, "error", lastErr)
		if attempt < maxRetries {
			time.Sleep(m.backoff * time.Duration(attempt))
		}
	}
	return -1, fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}
