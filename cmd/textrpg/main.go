package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	adapthttp "textrpg/internal/adapter/http"
	rediscache "textrpg/internal/adapter/redis"
	"textrpg/internal/app"
	"textrpg/internal/config"
	"textrpg/internal/telemetry"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "textrpg",
	Short:         "Character progression service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP API", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Create or update the store schema", RunE: runMigrate},
		&cobra.Command{Use: "consume", Short: "Turn lifecycle events into notifications", RunE: runConsume},
		&cobra.Command{Use: "flush-cache", Short: "Evict every cached character", RunE: runFlushCache},
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and installs the process logger and tracer.
func setup(ctx context.Context) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: cfg.OTel.ServiceName,
		Endpoint:    cfg.OTel.Endpoint,
		SampleRatio: cfg.OTel.SampleRatio,
		Headers:     cfg.OTel.Headers,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("telemetry: %w", err)
	}
	cleanup := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", "err", err)
		}
	}
	return cfg, logger, cleanup, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	d, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	query, mut := d.services(cfg, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           adapthttp.New(query, mut, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "store", cfg.Store.Driver, "cache", cfg.Cache.Driver, "events", cfg.Events.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	d, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	if d.sql == nil {
		logger.Info("nothing to migrate", "store", cfg.Store.Driver)
		return nil
	}
	if err := d.sql.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("schema up to date", "store", cfg.Store.Driver)
	return nil
}

func runConsume(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Events.Driver != "redis" {
		return fmt.Errorf("consume requires events.driver=redis, got %q", cfg.Events.Driver)
	}
	d, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	notifier := app.NewNotifier(rediscache.NewNotificationStream(d.redis, cfg.Events.NotificationStream), logger)
	consumer := rediscache.NewStreamConsumer(d.redis, rediscache.ConsumerConfig{
		Stream:   cfg.Events.Stream,
		Group:    cfg.Events.ConsumerGroup,
		Consumer: cfg.Events.ConsumerName,
		Block:    cfg.Events.Block,
	}, notifier.Handle, rediscache.NewDeduper(d.redis, "textrpg:dedup:"+cfg.Events.ConsumerGroup+":", cfg.Events.DedupTTL), logger)

	logger.Info("consuming", "stream", cfg.Events.Stream, "group", cfg.Events.ConsumerGroup)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runFlushCache(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	d, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	_, mut := d.services(cfg, logger)
	if err := mut.FlushCache(ctx); err != nil {
		return err
	}
	logger.Info("cache flushed", "cache", cfg.Cache.Driver)
	return nil
}
