// Command feedback-worker consumes feedback_queue, scores each message's
// sentiment, updates per-driver reputation, persists it durably, and raises
// alerts on threshold crossing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/movein/feedback-pipeline/alert"
	"github.com/movein/feedback-pipeline/config"
	"github.com/movein/feedback-pipeline/durable"
	"github.com/movein/feedback-pipeline/hotstore"
	"github.com/movein/feedback-pipeline/queue"
	"github.com/movein/feedback-pipeline/sentiment"
	"github.com/movein/feedback-pipeline/tracing"
	"github.com/movein/feedback-pipeline/worker"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(*configPath, logger); err != nil {
		logger.Error("feedback-worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()

	tp := tracing.NewProvider("feedback-worker", logger)
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("tracer provider shutdown failed", "error", err)
		}
	}()

	hot, err := hotstore.NewRedisStore(hotstore.Options{
		URL:      cfg.RedisURL,
		PoolSize: cfg.HotStore.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("connect to hot store: %w", err)
	}
	defer hot.Close()

	store, err := durable.NewPostgresStore(ctx, durable.Options{
		URL:            cfg.DatabaseURL,
		MinConns:       cfg.Durable.MinConns,
		MaxConns:       cfg.Durable.MaxConns,
		CommandTimeout: cfg.Durable.CommandTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to durable log: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate durable log: %w", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build queue logger: %w", err)
	}
	defer zapLogger.Sync()

	consumer, err := queue.NewConsumer(cfg.AMQPURL, cfg.Queue.QueueName, cfg.Queue.DLQName, cfg.Queue.PrefetchCount, zapLogger)
	if err != nil {
		return fmt.Errorf("connect consumer: %w", err)
	}
	defer consumer.Close()

	publisher, err := queue.NewPublisher(cfg.AMQPURL, cfg.Queue.QueueName, cfg.Queue.DLQName)
	if err != nil {
		return fmt.Errorf("connect dead-letter publisher: %w", err)
	}
	defer publisher.Close()

	// alert.Sink defaults to LogSink; QueueSink is an opt-in (alert.sink:
	// "queue" in config) since it requires an external notifier consuming
	// driver_alerts, which most deployments won't have running.
	var alertSink alert.Sink
	switch cfg.Alert.Sink {
	case "queue":
		if err := publisher.DeclareQueue(alert.DriverAlertsQueue); err != nil {
			return fmt.Errorf("declare alert queue: %w", err)
		}
		alertSink = alert.NewQueueSink(publisher, logger)
	default:
		alertSink = alert.NewLogSink(logger)
	}

	processor, err := worker.NewProcessor(worker.ProcessorConfig{
		Analyzer: sentiment.NewRuleBasedAnalyzer(
			sentiment.WithFuzzyMatching(cfg.Sentiment.FuzzyEnabled),
			sentiment.WithFuzzyThreshold(cfg.Sentiment.FuzzyThreshold),
			sentiment.WithFuzzyCacheSize(cfg.Sentiment.FuzzyCacheSize),
		),
		Hot:            hot,
		Durable:        store,
		Alerts:         alertSink,
		EMAAlpha:       cfg.Alert.EMAAlpha,
		AlertThreshold: cfg.Alert.Threshold,
		Cooldown:       time.Duration(cfg.Alert.CooldownHours) * time.Hour,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("build processor: %w", err)
	}

	return worker.Run(ctx, consumer, processor, worker.Options{
		Concurrency:       cfg.Worker.Concurrency,
		ShutdownTimeout:   cfg.Worker.ShutdownTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		ShardByDriver:     cfg.Queue.ShardByDriver,
		Logger:            logger,
	})
}
