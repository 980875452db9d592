package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/piquadrat/paloma/libs/mailer"
)

var mailerProviders = []string{"log", "outbox", "resend", "smtp", "postgres"}

type Config struct {
	Addr             string
	LogLevel         slog.Level
	MailerProvider   string
	DefaultFromEmail string
	DefaultFromName  string
	DefaultSubject   string
	ResendAPIKey     string
	DatabaseURL      string
	SMTP             mailer.SMTPConfig
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		Addr:             valueOrDefault("GIN_ADDR", ":8080"),
		DefaultFromEmail: strings.TrimSpace(os.Getenv("DEFAULT_FROM_EMAIL")),
		DefaultFromName:  strings.TrimSpace(os.Getenv("DEFAULT_FROM_NAME")),
		DefaultSubject:   valueOrDefault("DEFAULT_SUBJECT", "Notification"),
		ResendAPIKey:     strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SMTP: mailer.SMTPConfig{
			Host:       strings.TrimSpace(os.Getenv("EMAIL_HOST")),
			Encryption: mailer.SMTPEncryption(strings.ToLower(valueOrDefault("EMAIL_ENCRYPTION", string(mailer.SMTPEncryptionNone)))),
			AuthType:   mailer.SMTPAuthType(strings.ToLower(strings.TrimSpace(os.Getenv("EMAIL_AUTHTYPE")))),
			Username:   strings.TrimSpace(os.Getenv("EMAIL_USERNAME")),
			Password:   os.Getenv("EMAIL_PASSWORD"),
		},
	}

	level, err := parseLogLevel(valueOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if rawPort := strings.TrimSpace(os.Getenv("EMAIL_PORT")); rawPort != "" {
		port, err := strconv.Atoi(rawPort)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("EMAIL_PORT must be a valid port number")
		}
		cfg.SMTP.Port = port
	}

	if rawValidation := strings.TrimSpace(os.Getenv("EMAIL_CERT_VALIDATION")); rawValidation != "" {
		validate, err := strconv.ParseBool(rawValidation)
		if err != nil {
			return nil, fmt.Errorf("EMAIL_CERT_VALIDATION must be a boolean")
		}
		cfg.SMTP.CertValidation = validate
	} else {
		cfg.SMTP.CertValidation = true
	}

	switch cfg.SMTP.Encryption {
	case mailer.SMTPEncryptionNone, mailer.SMTPEncryptionTLS, mailer.SMTPEncryptionStartTLS:
	default:
		return nil, fmt.Errorf("EMAIL_ENCRYPTION must be one of none, tls, starttls")
	}

	switch cfg.SMTP.AuthType {
	case "", mailer.SMTPAuthPlain, mailer.SMTPAuthLogin, mailer.SMTPAuthCramMD5:
	default:
		return nil, fmt.Errorf("EMAIL_AUTHTYPE must be one of plain, login, crammd5")
	}

	cfg.MailerProvider = strings.ToLower(strings.TrimSpace(os.Getenv("MAILER_PROVIDER")))
	if cfg.MailerProvider == "" {
		cfg.MailerProvider = defaultProvider(cfg)
	}
	if !slices.Contains(mailerProviders, cfg.MailerProvider) {
		return nil, fmt.Errorf("MAILER_PROVIDER must be one of %s", strings.Join(mailerProviders, ", "))
	}

	switch cfg.MailerProvider {
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required for the resend provider")
		}
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("EMAIL_HOST is required for the smtp provider")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres provider")
		}
	}

	return cfg, nil
}

func defaultProvider(cfg *Config) string {
	switch {
	case cfg.ResendAPIKey != "":
		return "resend"
	case cfg.SMTP.Host != "":
		return "smtp"
	default:
		return "log"
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
	return level, nil
}

func loadDotEnvFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), "\"")
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
