// Package paloma declares outgoing emails as values with a subject and an
// optional sender, and sends them through a mailer.Mailer.
//
// Sender fields resolve when the declaration is built: a value set on the
// declaration wins, then the process-wide Settings, then nothing.
//
//	welcome := paloma.New(paloma.Mail{Subject: "Welcome"})
//	_, err := welcome.Send(ctx, "user@example.com", body, paloma.WithHTMLBody(html))
package paloma

import (
	"context"
	"errors"
	"fmt"

	"github.com/piquadrat/paloma/libs/mailer"
)

var (
	// ErrNoMailer is returned by Send when no mailer was configured.
	ErrNoMailer = errors.New("paloma: no mailer configured")
	// ErrNoSubject is returned by Send when neither the declaration nor the call carry a subject.
	ErrNoSubject = errors.New("paloma: mail has no subject")
)

// Mail declares one kind of email.
type Mail struct {
	Subject   string
	FromEmail string
	FromName  string

	mailer *mailer.Mailer
}

// Option sets an instance-level value while building a Mail.
type Option func(*Mail)

// WithFromEmail overrides the sender address.
func WithFromEmail(email string) Option {
	return func(m *Mail) {
		if email != "" {
			m.FromEmail = email
		}
	}
}

// WithFromName overrides the sender display name.
func WithFromName(name string) Option {
	return func(m *Mail) {
		if name != "" {
			m.FromName = name
		}
	}
}

// WithMailer sends through mlr instead of Settings.Mailer.
func WithMailer(mlr *mailer.Mailer) Option {
	return func(m *Mail) {
		m.mailer = mlr
	}
}

// New resolves decl against the current Settings.
func New(decl Mail, opts ...Option) *Mail {
	s := CurrentSettings()

	m := decl
	m.mailer = s.Mailer
	for _, opt := range opts {
		opt(&m)
	}

	if m.FromEmail == "" {
		m.FromEmail = s.DefaultFromEmail
	}
	if m.FromName == "" {
		m.FromName = s.DefaultFromName
	}
	return &m
}

// From returns the rendered From header.
func (m *Mail) From() string {
	if m.FromEmail == "" {
		return ""
	}
	return mailer.FormatFrom(m.FromName, m.FromEmail)
}

type sendOptions struct {
	subject  string
	htmlBody string
}

// SendOption adjusts a single Send call.
type SendOption func(*sendOptions)

// WithSubject replaces the declared subject for one send.
func WithSubject(subject string) SendOption {
	return func(o *sendOptions) {
		o.subject = subject
	}
}

// WithHTMLBody attaches an HTML alternative to the plain text body.
func WithHTMLBody(html string) SendOption {
	return func(o *sendOptions) {
		o.htmlBody = html
	}
}

// Message builds the message Send would deliver.
func (m *Mail) Message(to, body string, opts ...SendOption) (mailer.Message, error) {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	subject := m.Subject
	if o.subject != "" {
		subject = o.subject
	}
	if subject == "" {
		return mailer.Message{}, ErrNoSubject
	}

	msg := mailer.Message{
		From:    m.From(),
		Subject: subject,
		Text:    body,
		HTML:    o.htmlBody,
	}
	if to != "" {
		msg.To = []string{to}
	}
	return msg, nil
}

// Send delivers the declared mail to a single recipient.
func (m *Mail) Send(ctx context.Context, to, body string, opts ...SendOption) (mailer.SendResult, error) {
	if m.mailer == nil {
		return mailer.SendResult{}, ErrNoMailer
	}

	msg, err := m.Message(to, body, opts...)
	if err != nil {
		return mailer.SendResult{}, err
	}

	result, err := m.mailer.Send(ctx, msg)
	if err != nil {
		return mailer.SendResult{}, fmt.Errorf("failed to send %q: %w", msg.Subject, err)
	}
	return result, nil
}
