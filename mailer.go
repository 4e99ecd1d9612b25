package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SMTPConfig holds mail transport options.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

// SMTPMailer delivers messages over SMTP with STARTTLS. Dial and IO
// deadlines keep a wedged mail host from stalling the lifecycle flows.
type SMTPMailer struct {
	config SMTPConfig
	logger Logger
}

type SMTPMailerOption func(*SMTPMailer)

func WithSMTPLogger(l Logger) SMTPMailerOption {
	return func(m *SMTPMailer) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewSMTPMailer(config SMTPConfig, opts ...SMTPMailerOption) *SMTPMailer {
	if config.DialTimeout == 0 {
		config.DialTimeout = 8 * time.Second
	}
	if config.IOTimeout == 0 {
		config.IOTimeout = 15 * time.Second
	}

	mailer := &SMTPMailer{
		config: config,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mailer)
		}
	}
	return mailer
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	conn, err := net.DialTimeout("tcp", addr, m.config.DialTimeout)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to dial mail host")
	}
	defer conn.Close()

	deadline := time.Now().Add(m.config.IOTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set mail deadline")
	}

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open smtp client")
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: m.config.Host}
		if err := client.StartTLS(tlsConfig); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to start tls")
		}
	}

	if m.config.Username != "" {
		auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "smtp auth failed")
		}
	}

	if err := client.Mail(m.config.From); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "smtp mail from failed")
	}
	if err := client.Rcpt(to); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "smtp rcpt failed")
	}

	w, err := client.Data()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "smtp data failed")
	}

	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		m.config.From, to, subject, htmlBody,
	)

	if _, err := w.Write([]byte(msg)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "smtp write failed")
	}
	if err := w.Close(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "smtp close failed")
	}

	return client.Quit()
}

// LogMailer writes messages to the logger instead of sending them. Use it
// in development so lifecycle links show up in the console.
type LogMailer struct {
	logger Logger
}

func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	m.logger.Info("mail to=%s subject=%q\n%s", to, subject, htmlBody)
	return nil
}
