package worker

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/pkg/queue"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, p queue.EmailPayload) error
}

// SMTPConfig is the relay a SMTPSender talks to.
type SMTPConfig struct {
	Host        string
	Port        int
	User        string
	Pass        string
	FromAddress string
	FromName    string
}

// SMTPSender delivers mail through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, p queue.EmailPayload) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	msg := BuildMessage(s.cfg.FromName, s.cfg.FromAddress, p, time.Now())
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{p.RecipientEmail}, msg)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender writes messages to the log instead of sending them. Used when no relay is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, p queue.EmailPayload) error {
	s.logger.Info("email (not sent, no SMTP relay configured)",
		zap.String("to", p.RecipientEmail),
		zap.String("subject", p.Subject),
		zap.String("body", p.Body))
	return nil
}

// BuildMessage renders an RFC 5322 plain-text message.
func BuildMessage(fromName, fromAddr string, p queue.EmailPayload, now time.Time) []byte {
	from := mail.Address{Name: fromName, Address: fromAddr}
	to := mail.Address{Name: p.RecipientName, Address: p.RecipientEmail}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mimeHeader(p.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(p.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func mimeHeader(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.QEncoding.Encode("utf-8", s)
		}
	}
	return s
}
