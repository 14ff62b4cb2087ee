// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Email is a fully-built message ready to send.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers email. The live implementation speaks SMTP; tests and
// local development can substitute a recorder.
type Sender interface {
	Send(ctx context.Context, msg Email) error
}

// SMTPMailer sends mail through a single SMTP relay.
type SMTPMailer struct {
	host string
	port int
	user string
	pass string
	from string
	log  *zap.Logger
}

// NewSMTP returns a mailer for the given relay. from is the From header
// on every outgoing message.
func NewSMTP(host string, port int, user, pass, from string, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, user: user, pass: pass, from: from, log: logger}
}

// Send delivers msg as multipart/alternative so clients without HTML
// rendering still get the text body.
func (m *SMTPMailer) Send(ctx context.Context, msg Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	const boundary = "projhub-mail-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.TextBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(msg.HTMLBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.user, m.pass, m.host)

	if err := smtp.SendMail(addr, auth, m.from, []string{msg.To}, []byte(b.String())); err != nil {
		m.log.Error("smtp send failed",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}

	m.log.Debug("email sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
