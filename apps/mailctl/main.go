package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/piquadrat/paloma"
	"github.com/piquadrat/paloma/libs/mailer"
)

var rootCmd = &cobra.Command{
	Use:           "mailctl",
	Short:         "Send mail and inspect the outbox",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a single mail",
	RunE:  runSend,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mail HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the postgres outbox migrations",
	RunE:  runMigrate,
}

var sendFlags struct {
	to, body, subject, html string
	fromEmail, fromName     string
}

func init() {
	sendCmd.Flags().StringVar(&sendFlags.to, "to", "", "recipient address")
	sendCmd.Flags().StringVar(&sendFlags.body, "body", "", "plain text body")
	sendCmd.Flags().StringVar(&sendFlags.subject, "subject", "", "subject (defaults to DEFAULT_SUBJECT)")
	sendCmd.Flags().StringVar(&sendFlags.html, "html", "", "optional HTML body")
	sendCmd.Flags().StringVar(&sendFlags.fromEmail, "from-email", "", "sender address (defaults to DEFAULT_FROM_EMAIL)")
	sendCmd.Flags().StringVar(&sendFlags.fromName, "from-name", "", "sender name (defaults to DEFAULT_FROM_NAME)")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("body")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := loadDotEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read .env: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := newApp(ctx, cfg, newLogger(cfg, false))
	if err != nil {
		return err
	}
	defer app.Close()

	mail := paloma.New(
		paloma.Mail{Subject: cfg.DefaultSubject},
		paloma.WithFromEmail(sendFlags.fromEmail),
		paloma.WithFromName(sendFlags.fromName),
	)
	result, err := mail.Send(ctx, sendFlags.to, sendFlags.body,
		paloma.WithSubject(sendFlags.subject),
		paloma.WithHTMLBody(sendFlags.html),
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.ProviderMessageID)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, true)
	app, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("runtime configuration",
		"addr", cfg.Addr,
		"provider", cfg.MailerProvider,
		"default_from_email", cfg.DefaultFromEmail,
	)

	logger.Info("starting gin API", "addr", cfg.Addr)
	return app.newRouter().Run(cfg.Addr)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be configured")
	}

	logger := newLogger(cfg, false)
	ctx := cmd.Context()
	outbox, err := mailer.OpenPostgresOutbox(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer outbox.Close()

	if err := outbox.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("migrations completed successfully")
	return nil
}
