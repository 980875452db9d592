package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	mail "github.com/xhit/go-simple-mail/v2"
)

type SMTPEncryption string

const (
	SMTPEncryptionNone     SMTPEncryption = "none"
	SMTPEncryptionTLS      SMTPEncryption = "tls"
	SMTPEncryptionStartTLS SMTPEncryption = "starttls"
)

type SMTPAuthType string

const (
	SMTPAuthPlain   SMTPAuthType = "plain"
	SMTPAuthLogin   SMTPAuthType = "login"
	SMTPAuthCramMD5 SMTPAuthType = "crammd5"
)

// ErrSMTPHostRequired is returned when the SMTP host is missing.
var ErrSMTPHostRequired = errors.New("mailer: smtp host is required")

// SMTPConfig configures SMTPProvider.
type SMTPConfig struct {
	Host           string
	Port           int
	Encryption     SMTPEncryption
	CertValidation bool
	Username       string
	Password       string
	AuthType       SMTPAuthType

	ConnectTimeout time.Duration
	SendTimeout    time.Duration
}

// SMTPProvider delivers messages to an SMTP server.
type SMTPProvider struct {
	cfg SMTPConfig
}

// NewSMTPProvider creates an SMTP provider. Port defaults to 25 and both
// timeouts default to 30 seconds.
func NewSMTPProvider(cfg SMTPConfig) (*SMTPProvider, error) {
	if cfg.Host == "" {
		return nil, ErrSMTPHostRequired
	}
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &SMTPProvider{cfg: cfg}, nil
}

// Name returns the provider name.
func (s *SMTPProvider) Name() string {
	return "smtp"
}

// Send delivers msg over a fresh SMTP connection. The returned message ID
// is the one written to the Message-ID header.
func (s *SMTPProvider) Send(ctx context.Context, msg Message) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}

	email, id, err := s.prepare(msg)
	if err != nil {
		return SendResult{}, err
	}

	client, err := s.server(ctx).Connect()
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := email.Send(client); err != nil {
		return SendResult{}, fmt.Errorf("failed to send email: %w", err)
	}

	return SendResult{ProviderMessageID: id}, nil
}

func (s *SMTPProvider) prepare(msg Message) (*mail.Email, string, error) {
	email, err := Compose(msg)
	if err != nil {
		return nil, "", err
	}
	id := uuid.New().String()
	email.AddHeader("Message-ID", fmt.Sprintf("<%s@%s>", id, s.cfg.Host))
	if email.Error != nil {
		return nil, "", fmt.Errorf("failed to compose email: %w", email.Error)
	}
	return email, id, nil
}

// server maps the config onto a go-simple-mail client. The configured
// timeouts are shortened to the ctx deadline when it comes sooner.
func (s *SMTPProvider) server(ctx context.Context) *mail.SMTPServer {
	srv := mail.NewSMTPClient()

	srv.ConnectTimeout = s.cfg.ConnectTimeout
	srv.SendTimeout = s.cfg.SendTimeout
	if deadline, ok := ctx.Deadline(); ok {
		// A zero timeout disables the dial limit, so keep it positive.
		remaining := max(time.Until(deadline), time.Millisecond)
		srv.ConnectTimeout = min(srv.ConnectTimeout, remaining)
		srv.SendTimeout = min(srv.SendTimeout, remaining)
	}
	srv.Host = s.cfg.Host
	srv.Port = s.cfg.Port
	srv.Username = s.cfg.Username
	srv.Password = s.cfg.Password

	switch s.cfg.Encryption {
	case SMTPEncryptionTLS:
		srv.Encryption = mail.EncryptionSSLTLS
	case SMTPEncryptionStartTLS:
		srv.Encryption = mail.EncryptionSTARTTLS
	default:
		srv.Encryption = mail.EncryptionNone
	}
	srv.TLSConfig = &tls.Config{ServerName: srv.Host, InsecureSkipVerify: !s.cfg.CertValidation}

	switch s.cfg.AuthType {
	case SMTPAuthPlain:
		srv.Authentication = mail.AuthPlain
	case SMTPAuthLogin:
		srv.Authentication = mail.AuthLogin
	case SMTPAuthCramMD5:
		srv.Authentication = mail.AuthCRAMMD5
	default:
		if s.cfg.Username == "" {
			srv.Authentication = mail.AuthNone
		} else {
			srv.Authentication = mail.AuthPlain
		}
	}

	return srv
}
