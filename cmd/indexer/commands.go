package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"discuit_search/internal/config"
	"discuit_search/internal/domain"
	"discuit_search/internal/handler"
	"discuit_search/internal/metrics"
	"discuit_search/internal/queue"
	"discuit_search/internal/scheduler"
	"discuit_search/internal/service"
	"discuit_search/internal/source/discuit"
	"discuit_search/internal/storage/sqlstore"
)

const shutdownTimeout = 10 * time.Second

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Reconcile, index new posts and serve the ops endpoints",
	Long: `Declare the index settings, run the startup reconciliation (unless
search.skip_sync is set), then index new posts from the live feed while
serving /health, /metrics, /reconcile and /search.

The live feed is chosen by ingest.feed: "poll" watches the Discuit API,
"amqp" consumes the queue filled by the relay command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer db.Close()

	redactor := loadRedactor(cfg.RedactionsFile, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	index := newSearchClient(cfg.Search, logger)
	postStore := sqlstore.NewPostStore(db)
	syncStateStore := sqlstore.NewSyncStateStore(db)

	reconciler := service.NewReconciler(postStore, index, syncStateStore, redactor, collector, logger, cfg.Sync)
	if err := reconciler.EnsureSettings(ctx); err != nil {
		logger.Error("failed to apply index settings", "error", err)
		return err
	}

	feed, closeFeed, err := newFeed(cfg, logger)
	if err != nil {
		logger.Error("failed to start live feed", "feed", cfg.Ingest.Feed, "error", err)
		return err
	}
	defer closeFeed()
	feed = service.NewRestartingFeed(feed, cfg.Ingest.ResubscribeBackoff, cfg.Ingest.MaxResubscribeBackoff, logger)

	ingester := service.NewIngester(postStore, index, redactor, collector, logger, cfg.Ingest, cfg.Sync.TaskTimeout)
	sched := scheduler.NewScheduler(reconciler, cfg.Sync.Interval, !cfg.Search.SkipSync, logger)

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: handler.NewRouter(&handler.RouterDeps{
			Reconciler: reconciler,
			Searcher:   index,
			DB:         db,
			Redactor:   redactor,
			Gatherer:   registry,
			Logger:     logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info("starting indexer",
		"index", cfg.Search.Index,
		"feed", cfg.Ingest.Feed,
		"interval", cfg.Sync.Interval,
		"skip_sync", cfg.Search.SkipSync,
		"addr", cfg.HTTP.Addr,
	)

	g, gctx := errgroup.WithContext(ctx)
	events := make(chan domain.Post, cfg.Ingest.QueueCapacity)

	g.Go(func() error {
		return ignoreCanceled(feed.Subscribe(gctx, events))
	})
	g.Go(func() error {
		return ignoreCanceled(ingester.Run(gctx, events))
	})
	g.Go(func() error {
		return ignoreCanceled(sched.Start(gctx))
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("indexer stopped", "error", err)
		return err
	}
	logger.Info("indexer stopped")
	return nil
}

// newFeed builds the live feed selected by ingest.feed. The returned func
// releases its connections.
func newFeed(cfg *config.Config, logger *slog.Logger) (service.Feed, func(), error) {
	switch cfg.Ingest.Feed {
	case "poll":
		client := newDiscuitClient(cfg.Discuit, "all", "latest", logger)
		watcher := discuit.NewWatcher(client, cfg.Ingest.PollInterval, cfg.Discuit.PageSize, logger)
		return watcher, func() {}, nil
	case "amqp":
		consumer, err := queue.NewConsumer(rabbitConfig(cfg.RabbitMQ), cfg.Ingest.QueueCapacity, logger)
		if err != nil {
			return nil, nil, err
		}
		return consumer, func() { consumer.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ingest feed %q", cfg.Ingest.Feed)
	}
}

func rabbitConfig(cfg config.RabbitMQConfig) queue.Config {
	return queue.Config{
		URL:        cfg.URL,
		Exchange:   cfg.Exchange,
		RoutingKey: cfg.RoutingKey,
		QueueName:  cfg.QueueName,
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// --- reconcile ---

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := openDatabase(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			return err
		}
		defer db.Close()

		reconciler := service.NewReconciler(
			sqlstore.NewPostStore(db),
			newSearchClient(cfg.Search, logger),
			sqlstore.NewSyncStateStore(db),
			loadRedactor(cfg.RedactionsFile, logger),
			nil,
			logger,
			cfg.Sync,
		)
		if err := reconciler.EnsureSettings(ctx); err != nil {
			logger.Error("failed to apply index settings", "error", err)
			return err
		}

		stats, err := reconciler.Run(ctx)
		if err != nil {
			logger.Error("reconciliation failed", "error", err)
			return err
		}
		if failed := stats.Added.FailedBatches + stats.Updated.FailedBatches + stats.Deleted.FailedBatches; failed > 0 {
			return fmt.Errorf("%d batches failed", failed)
		}
		return nil
	},
}

// --- backfill ---

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Copy posts from the Discuit API into the post store",
	Long: `Page through the Discuit post listing and save every post with
insert-or-ignore. The cursor is saved after each page, so an interrupted
run resumes where it stopped. Stops after backfill.max_posts posts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		if n, _ := cmd.Flags().GetInt("max-posts"); n > 0 {
			cfg.Backfill.MaxPosts = n
		}

		db, err := openDatabase(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			return err
		}
		defer db.Close()

		backfiller := service.NewBackfiller(
			newDiscuitClient(cfg.Discuit, cfg.Backfill.Feed, cfg.Backfill.Sort, logger),
			sqlstore.NewPostStore(db),
			sqlstore.NewSyncStateStore(db),
			sqlstore.NewTransactionManager(db),
			nil,
			logger,
			cfg.Backfill,
			cfg.Discuit.PageSize,
		)

		if _, err := backfiller.Run(ctx); err != nil {
			logger.Error("backfill failed", "error", err)
			return err
		}
		return nil
	},
}

// --- relay ---

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish newly seen Discuit posts to RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		publisher, err := queue.NewPublisher(rabbitConfig(cfg.RabbitMQ), logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			return err
		}
		defer publisher.Close()

		watcher := discuit.NewWatcher(
			newDiscuitClient(cfg.Discuit, "all", "latest", logger),
			cfg.Ingest.PollInterval,
			cfg.Discuit.PageSize,
			logger,
		)

		logger.Info("starting relay", "exchange", cfg.RabbitMQ.Exchange, "routing_key", cfg.RabbitMQ.RoutingKey)
		return service.NewRelayer(watcher, publisher, logger, cfg.Ingest.QueueCapacity).Run(ctx)
	},
}

func init() {
	backfillCmd.Flags().Int("max-posts", 0, "stop after this many posts (overrides backfill.max_posts)")
}
