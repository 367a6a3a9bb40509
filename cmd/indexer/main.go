package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"discuit_search/internal/config"
	"discuit_search/internal/redact"
	"discuit_search/internal/search"
	"discuit_search/internal/source/discuit"
	"discuit_search/internal/storage/sqlstore"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Keep the post search index in step with the post store",
	Long: `indexer mirrors Discuit posts from the post store into a Meilisearch index.

Commands:
  serve      reconcile on startup, index new posts as they arrive, serve ops HTTP
  reconcile  run a single reconciliation pass and exit
  backfill   copy posts from the Discuit API into the post store
  relay      publish newly seen posts to RabbitMQ`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.AddCommand(serveCmd, reconcileCmd, backfillCmd, relayCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file. A missing file is logged and the
// defaults are used.
func loadConfig() (*config.Config, *slog.Logger, error) {
	logger := setupLogger("info")

	cfg, err := config.Load(configPath)
	switch {
	case errors.Is(err, config.ErrFileMissing):
		logger.Error("config file not found, using defaults", "error", err)
	case err != nil:
		logger.Error("failed to load config", "error", err)
		return nil, nil, err
	}

	return cfg, setupLogger(cfg.LogLevel), nil
}

// openDatabase applies pending migrations and connects to the post store.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sqlx.DB, error) {
	if err := sqlstore.Migrate(cfg.MigrationURL()); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	db, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", "driver", cfg.Driver)
	return db, nil
}

// loadRedactor reads the redaction lists. Without them nothing is redacted.
func loadRedactor(path string, logger *slog.Logger) *redact.Redactor {
	r, err := redact.LoadFile(path)
	if err != nil {
		logger.Error("failed to load redactions, redacting nothing", "path", path, "error", err)
		return redact.New(nil, nil)
	}
	return r
}

func newSearchClient(cfg config.SearchConfig, logger *slog.Logger) *search.Client {
	return search.New(search.Config{
		URL:          cfg.URL,
		APIKey:       cfg.APIKey,
		Index:        cfg.Index,
		Timeout:      cfg.Timeout,
		PollInterval: cfg.PollInterval,
	}, logger)
}

func newDiscuitClient(cfg config.DiscuitConfig, feed, sort string, logger *slog.Logger) *discuit.Client {
	return discuit.New(discuit.Config{
		BaseURL:        cfg.APIURL,
		Feed:           feed,
		Sort:           sort,
		PageSize:       cfg.PageSize,
		Timeout:        cfg.Timeout,
		RateLimit:      cfg.RateLimit,
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}, logger)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
