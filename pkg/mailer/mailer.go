package mailer

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Mailer interface {
	Send(to, subject, htmlBody string) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// LogMailer only logs outgoing mail. Used when SMTP credentials are absent.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(to, subject, _ string) error {
	m.log.Info("mail not sent, smtp disabled", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func PasswordResetBody(name, link string) string {
	return fmt.Sprintf(`<p>Hello %s,</p>
<p>We received a request to reset your password. Click the link below to choose a new one:</p>
<p><a href="%s">Reset password</a></p>
<p>This link expires in 1 hour. If you did not ask for a reset, you can ignore this email.</p>`, name, link)
}

func PasswordResetDoneBody(name string) string {
	return fmt.Sprintf(`<p>Hello %s,</p>
<p>Your password has been reset successfully. If this was not you, contact support immediately.</p>`, name)
}

func PasswordChangedBody(name string) string {
	return fmt.Sprintf(`<p>Hello %s,</p>
<p>Your password was changed. If you did not make this change, reset your password right away.</p>`, name)
}
