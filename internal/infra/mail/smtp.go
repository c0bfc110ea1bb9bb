package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/domain/ports/adapter"
	"payment-reconciler/internal/infra/metrics"
)

// Compile-time check
var _ adapter.Mailer = (*SMTPMailer)(nil)

const (
	TLSStartTLS = "starttls"
	TLSImplicit = "smtps"
	TLSNone     = "none"

	dialTimeout = 10 * time.Second
)

type SMTPMailer struct {
	cfg config.MailConfig
	now func() time.Time
	log *zerolog.Logger
}

func NewSMTPMailer(cfg config.MailConfig, logger *zerolog.Logger) *SMTPMailer {
	l := logger.With().Str("component", "SMTPMailer").Logger()
	return &SMTPMailer{cfg: cfg, now: time.Now, log: &l}
}

// Send delivers a multipart/alternative message. The context bounds the dial and the whole SMTP exchange.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if strings.ContainsAny(to, "\r\n") || strings.TrimSpace(to) == "" {
		metrics.IncMail("smtp", "rejected")
		return fmt.Errorf("invalid recipient %q", to)
	}
	msg := buildMessage(m.fromHeader(), to, subject, htmlBody, textBody, m.now())
	if err := m.deliver(ctx, to, msg); err != nil {
		metrics.IncMail("smtp", "error")
		return fmt.Errorf("smtp send: %w", err)
	}
	metrics.IncMail("smtp", "ok")
	m.log.Debug().Str("subject", subject).Msg("mail sent")
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	tlsCfg := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{Timeout: dialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if m.cfg.TLS == TLSImplicit {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if m.cfg.TLS == TLSStartTLS {
		ok, _ := c.Extension("STARTTLS")
		if !ok {
			return fmt.Errorf("server does not support STARTTLS")
		}
		if err = c.StartTLS(tlsCfg); err != nil {
			return err
		}
	}

	if m.cfg.Username != "" {
		if err = c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return err
		}
	}
	if err = c.Mail(m.cfg.From); err != nil {
		return err
	}
	if err = c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (m *SMTPMailer) fromHeader() string {
	name := strings.TrimSpace(m.cfg.FromName)
	if name == "" {
		return m.cfg.From
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), m.cfg.From)
}

func buildMessage(from, to, subject, htmlBody, textBody string, at time.Time) []byte {
	boundary := "alt_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	var msg bytes.Buffer
	write := func(format string, a ...any) { _, _ = fmt.Fprintf(&msg, format, a...) }

	write("From: %s\r\n", from)
	write("To: %s\r\n", to)
	write("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	write("Date: %s\r\n", at.Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	write("\r\n")

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", textBody)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", htmlBody)

	write("--%s--\r\n", boundary)
	return msg.Bytes()
}
