package mailer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// LogProvider writes messages to a logger instead of delivering them.
// It is the fallback when no real transport is configured.
type LogProvider struct {
	Logger *slog.Logger
}

// NewLogProvider creates a log-only provider. A nil logger means slog.Default.
func NewLogProvider(logger *slog.Logger) *LogProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProvider{Logger: logger}
}

// Name returns the provider name.
func (l *LogProvider) Name() string {
	return "log"
}

// Send logs msg and returns a "log-" prefixed message ID.
func (l *LogProvider) Send(ctx context.Context, msg Message) (SendResult, error) {
	id := "log-" + uuid.New().String()
	alts := msg.Alternatives()

	l.Logger.InfoContext(ctx, "mailer: email logged (not sent)",
		"provider", l.Name(),
		"message_id", id,
		"from", fromHeader(msg.From),
		"to", strings.Join(compactAddresses(msg.To), ", "),
		"subject", msg.Subject,
		"text_length", len(msg.Text),
		"alternatives", len(alts),
	)
	if msg.Text != "" {
		l.Logger.DebugContext(ctx, "mailer: email text body", "message_id", id, "text", msg.Text)
	}
	for _, alt := range alts {
		l.Logger.DebugContext(ctx, "mailer: email alternative",
			"message_id", id,
			"mime_type", alt.MimeType,
			"content", alt.Content,
		)
	}
	return SendResult{ProviderMessageID: id}, nil
}
