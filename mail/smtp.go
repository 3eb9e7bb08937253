// Package mail provides a minimal SMTP implementation of
// authkit.MailSender for OTP delivery.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Config configures the SMTP sender. Host and From are required; Username
// empty disables authentication, for local relays.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// SMTPSender delivers OTP codes over SMTP with STARTTLS when the server
// offers it.
type SMTPSender struct {
	cfg  Config
	addr string
}

// NewSMTPSender validates cfg and returns an SMTPSender.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Subject == "" {
		cfg.Subject = "Your verification code"
	}
	return &SMTPSender{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
	}, nil
}

// Send delivers the code to the address. The context deadline bounds the
// whole SMTP conversation through the dial.
func (s *SMTPSender) Send(ctx context.Context, to, code string) error {
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := s.message(to, code)

	// net/smtp has no context support; run in a goroutine and abandon the
	// attempt when the context ends. The connection is cleaned up by the
	// dial timeout on the far side.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.addr, auth, s.cfg.From, []string{to}, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTPSender) message(to, code string) []byte {
	var b strings.Builder
	b.WriteString("From: ")
	b.WriteString(s.cfg.From)
	b.WriteString("\r\nTo: ")
	b.WriteString(to)
	b.WriteString("\r\nSubject: ")
	b.WriteString(s.cfg.Subject)
	b.WriteString("\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString("Your verification code is: ")
	b.WriteString(code)
	b.WriteString("\r\n\r\nThe code expires in a few minutes. If you did not request it, ignore this message.\r\n")
	return []byte(b.String())
}
