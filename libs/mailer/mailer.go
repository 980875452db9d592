package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrNoSender is returned when neither the message nor the mailer carry a sender.
	ErrNoSender = errors.New("mailer: no sender provided")
	// ErrNoRecipients is returned when a message has no usable To address.
	ErrNoRecipients = errors.New("mailer: no recipients provided")
	// ErrNotFound is returned by outbox lookups for unknown entries.
	ErrNotFound = errors.New("mailer: outbox entry not found")
)

// Message represents an email to send.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text"`
}

// Alternative is an additional representation of the message body.
type Alternative struct {
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
}

// Alternatives returns the alternative body parts sent next to the plain text body.
func (m Message) Alternatives() []Alternative {
	if m.HTML == "" {
		return nil
	}
	return []Alternative{{Content: m.HTML, MimeType: "text/html"}}
}

// SendResult contains the response from the provider.
type SendResult struct {
	ProviderMessageID string
}

// Provider sends emails via a specific backend.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) (SendResult, error)
}

// Mailer is the top-level entry point for sending emails.
type Mailer struct {
	provider    Provider
	fromAddress string
	logger      *slog.Logger
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithLogger sets the logger used for send diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a new Mailer with the given provider and default sender address.
func New(provider Provider, fromAddress string, opts ...Option) *Mailer {
	m := &Mailer{
		provider:    provider,
		fromAddress: fromAddress,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send sends an email message via the configured provider.
// If msg.From is empty, the default fromAddress is used.
func (m *Mailer) Send(ctx context.Context, msg Message) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}

	if msg.From == "" {
		msg.From = m.fromAddress
	}
	if msg.From == "" {
		return SendResult{}, ErrNoSender
	}

	msg.To = compactAddresses(msg.To)
	if len(msg.To) == 0 {
		return SendResult{}, ErrNoRecipients
	}

	result, err := m.provider.Send(ctx, msg)
	if err != nil {
		return SendResult{}, fmt.Errorf("%s provider: %w", m.provider.Name(), err)
	}

	m.logger.Debug("mailer: email handed to provider",
		"provider", m.provider.Name(),
		"to", strings.Join(msg.To, ", "),
		"subject", msg.Subject,
		"message_id", result.ProviderMessageID,
	)
	return result, nil
}

// ProviderName returns the name of the configured provider.
func (m *Mailer) ProviderName() string {
	return m.provider.Name()
}

// FormatFrom renders a From header. The display name is omitted when empty.
func FormatFrom(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func compactAddresses(addresses []string) []string {
	out := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
