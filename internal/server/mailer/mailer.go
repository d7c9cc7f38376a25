// Package mailer sends the transactional mail of the auth server. Bodies are
// written in markdown and rendered to HTML before sending.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/logging"
	"github.com/dmitrijs2005/spa-auth/internal/server/config"
	"github.com/yuin/goldmark"
)

type Message struct {
	To       string
	Subject  string
	Markdown string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP sender when SMTPHost is configured and a LogSender otherwise.
func New(cfg *config.Config, log logging.Logger) Sender {
	if cfg.SMTPHost == "" {
		return NewLogSender(log)
	}
	return NewSMTPSender(cfg)
}

// Render converts markdown to HTML.
func Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sendMailFunc matches smtp.SendMail; replaced in tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPSender struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
	now      func() time.Time
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	s := &SMTPSender{
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		from:     cfg.MailFrom,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
	if cfg.SMTPUser != "" {
		s.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	html, err := Render(msg.Markdown)
	if err != nil {
		return fmt.Errorf("render mail: %w", err)
	}

	var b strings.Builder
	b.WriteString("From: " + s.from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + s.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)

	if err := s.sendMail(s.addr, s.auth, s.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogSender records that a mail would have been sent. Bodies carry one-time
// links and are not logged.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log.With("module", "mailer")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if _, err := Render(msg.Markdown); err != nil {
		return fmt.Errorf("render mail: %w", err)
	}
	s.log.Info(ctx, "mail not sent, SMTP is not configured", "to", msg.To, "subject", msg.Subject)
	return nil
}
