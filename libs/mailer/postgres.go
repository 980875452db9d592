package mailer

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const addressSeparator = ", "

// PostgresOutbox stores messages in the mail_outbox table instead of delivering them.
type PostgresOutbox struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenPostgresOutbox connects to databaseURL and verifies the connection.
func OpenPostgresOutbox(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresOutbox, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return NewPostgresOutbox(db, logger), nil
}

// NewPostgresOutbox wraps an existing database handle.
func NewPostgresOutbox(db *sql.DB, logger *slog.Logger) *PostgresOutbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresOutbox{db: db, log: logger}
}

// Name returns the provider name.
func (p *PostgresOutbox) Name() string {
	return "postgres"
}

// Close releases the database handle.
func (p *PostgresOutbox) Close() error {
	return p.db.Close()
}

// Migrate applies pending schema migrations. Each file runs once in its own
// transaction and is recorded in schema_migrations.
func (p *PostgresOutbox) Migrate(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		var exists bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, file).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		content, err := migrationFiles.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}

		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		p.log.Info("applied migration", "file", file)
	}

	return nil
}

// Send stores msg in the mail_outbox table.
func (p *PostgresOutbox) Send(ctx context.Context, msg Message) (SendResult, error) {
	raw, err := Raw(msg)
	if err != nil {
		return SendResult{}, err
	}

	id := uuid.New().String()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO mail_outbox (id, from_header, to_addresses, subject, text_body, html_body, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, msg.From, strings.Join(msg.To, addressSeparator), msg.Subject, msg.Text, msg.HTML, raw)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to store outbox message: %w", err)
	}

	return SendResult{ProviderMessageID: id}, nil
}

// List implements OutboxStore.
func (p *PostgresOutbox) List(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT id::text, from_header, to_addresses, subject, text_body, html_body, raw, sent_at
		FROM mail_outbox
		ORDER BY sent_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		entry, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get implements OutboxStore.
func (p *PostgresOutbox) Get(ctx context.Context, id string) (*OutboxEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	row := p.db.QueryRowContext(ctx, `
		SELECT id::text, from_header, to_addresses, subject, text_body, html_body, raw, sent_at
		FROM mail_outbox
		WHERE id = $1`, id)
	entry, err := scanOutboxEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutboxEntry(row rowScanner) (OutboxEntry, error) {
	var (
		entry  OutboxEntry
		to     string
		sentAt time.Time
	)
	if err := row.Scan(
		&entry.ID,
		&entry.Message.From,
		&to,
		&entry.Message.Subject,
		&entry.Message.Text,
		&entry.Message.HTML,
		&entry.Raw,
		&sentAt,
	); err != nil {
		return OutboxEntry{}, err
	}
	if to != "" {
		entry.Message.To = strings.Split(to, addressSeparator)
	}
	entry.SentAt = sentAt.UTC()
	return entry, nil
}
