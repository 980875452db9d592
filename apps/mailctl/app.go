package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/piquadrat/paloma"
	"github.com/piquadrat/paloma/libs/mailer"
)

type App struct {
	cfg *Config
	log *slog.Logger

	mailer *mailer.Mailer
	// outbox is nil for providers that deliver instead of capturing
	outbox mailer.OutboxStore
	closer io.Closer
}

func newLogger(cfg *Config, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newApp builds the configured provider and installs the process-wide mail settings.
func newApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	app := &App{cfg: cfg, log: logger}

	var provider mailer.Provider
	switch cfg.MailerProvider {
	case "resend":
		provider = mailer.NewResendProvider(cfg.ResendAPIKey)
	case "smtp":
		smtpProvider, err := mailer.NewSMTPProvider(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		provider = smtpProvider
	case "outbox":
		outboxProvider := mailer.NewOutboxProvider(nil)
		app.outbox = outboxProvider.Outbox()
		provider = outboxProvider
	case "postgres":
		pg, err := mailer.OpenPostgresOutbox(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("failed to migrate outbox: %w", err)
		}
		app.outbox = pg
		app.closer = pg
		provider = pg
	default:
		provider = mailer.NewLogProvider(logger)
	}

	app.mailer = mailer.New(provider, cfg.DefaultFromEmail, mailer.WithLogger(logger))
	paloma.Configure(paloma.Settings{
		DefaultFromEmail: cfg.DefaultFromEmail,
		DefaultFromName:  cfg.DefaultFromName,
		Mailer:           app.mailer,
	})

	logger.Info("mailer initialized", "provider", provider.Name())
	return app, nil
}

func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
