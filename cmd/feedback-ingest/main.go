// Command feedback-ingest serves the HTTP surface riders submit feedback
// through, validating and publishing events onto the queue for
// feedback-worker to consume, plus a read-only driver history endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/movein/feedback-pipeline/config"
	"github.com/movein/feedback-pipeline/durable"
	"github.com/movein/feedback-pipeline/health"
	"github.com/movein/feedback-pipeline/history"
	"github.com/movein/feedback-pipeline/hotstore"
	"github.com/movein/feedback-pipeline/ingest"
	"github.com/movein/feedback-pipeline/queue"
	"github.com/movein/feedback-pipeline/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "feedback-ingest: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()

	tp := tracing.NewProvider("feedback-ingest", nil)
	defer tp.Shutdown(ctx)

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

	publisher, err := queue.NewPublisher(cfg.AMQPURL, cfg.Queue.QueueName, cfg.Queue.DLQName)
	if err != nil {
		return fmt.Errorf("connect publisher: %w", err)
	}
	defer publisher.Close()

	reconstructor := history.New(store, hot, cfg.Alert.EMAAlpha)

	srv := ingest.New(ingest.Deps{
		Port:        cfg.Ingest.Port,
		MetricsPath: cfg.Ingest.MetricsPath,
		ReadTimeout: cfg.Ingest.ReadTimeout,
		Publisher:   publisher,
		History:     reconstructor,
		HealthCheck: func(ctx context.Context) health.Status {
			return health.Combine(
				health.RedisCheck(ctx, hot),
				health.PostgresCheck(ctx, store),
			)
		},
	}, os.Stdout)

	return srv.Start()
}
