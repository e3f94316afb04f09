package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/movein/feedback-pipeline/queue"
)

// peekDriverID extracts driver_id from a raw queue body without fully
// validating it, for shard routing only; Processor.Handle performs the
// real parse and validation and dead-letters malformed bodies itself.
func peekDriverID(body []byte) (int64, bool) {
	var partial struct {
		DriverID int64 `json:"driver_id"`
	}
	if err := json.Unmarshal(body, &partial); err != nil {
		return 0, false
	}
	return partial.DriverID, true
}

// adaptDeliveries widens a channel of *queue.Delivery to the narrower
// Delivery interface this package depends on, so the goroutine pool and
// sharder only ever see the interface.
func adaptDeliveries(in <-chan *queue.Delivery) <-chan Delivery {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for d := range in {
			out <- d
		}
	}()
	return out
}

// Options configures Run's concurrency and shutdown behavior.
type Options struct {
	// Concurrency is the number of goroutines draining deliveries.
	Concurrency int
	// ShutdownTimeout bounds how long Run waits for in-flight deliveries
	// to finish after a shutdown signal before returning anyway.
	ShutdownTimeout time.Duration
	// HeartbeatInterval controls how often Run logs a liveness line with
	// the running processed-message count.
	HeartbeatInterval time.Duration
	// ShardByDriver routes each delivery to one of Concurrency goroutines
	// keyed by driver_id, trading throughput for per-driver EMA ordering.
	// Per spec this is an opt-in strict-ordering mode; the default
	// (false) makes no per-driver ordering guarantee.
	ShardByDriver bool

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Run drains consumer's Deliveries across Concurrency goroutines, handing
// each to processor.Handle, until SIGTERM/SIGINT or ctx is cancelled. It
// blocks until shutdown completes or ShutdownTimeout elapses.
func Run(ctx context.Context, consumer *queue.Consumer, processor *Processor, opts Options) error {
	opts = opts.withDefaults()
	logger := opts.Logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var processed atomic.Int64
	deliveries := adaptDeliveries(consumer.Deliveries(ctx))

	var wg sync.WaitGroup
	if opts.ShardByDriver {
		runSharded(ctx, &wg, deliveries, processor, opts.Concurrency, &processed, logger)
	} else {
		runPooled(ctx, &wg, deliveries, processor, opts.Concurrency, &processed, logger)
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go runHeartbeat(heartbeatCtx, &processed, opts.HeartbeatInterval, logger)

	logger.Info("worker started", "concurrency", opts.Concurrency, "shard_by_driver", opts.ShardByDriver)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, initiating graceful shutdown")
	}

	cancel()

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		logger.Info("worker shutdown complete", "processed", processed.Load())
	case <-time.After(opts.ShutdownTimeout):
		logger.Warn("worker shutdown timeout exceeded", "timeout", opts.ShutdownTimeout)
		return fmt.Errorf("worker: shutdown timeout exceeded after %s", opts.ShutdownTimeout)
	}
	return nil
}

// runPooled starts concurrency goroutines that all drain the same
// deliveries channel, the default mode with no per-driver ordering.
func runPooled(ctx context.Context, wg *sync.WaitGroup, deliveries <-chan Delivery, p *Processor, concurrency int, processed *atomic.Int64, logger *slog.Logger) {
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range deliveries {
				handleOne(ctx, p, d, processed)
			}
		}()
	}
}

// runSharded fans deliveries out across concurrency shards keyed by
// driver_id, so every message for a given driver is handled by the same
// goroutine and therefore processed in arrival order.
func runSharded(ctx context.Context, wg *sync.WaitGroup, deliveries <-chan Delivery, p *Processor, concurrency int, processed *atomic.Int64, logger *slog.Logger) {
	shards := make([]chan Delivery, concurrency)
	for i := range shards {
		shards[i] = make(chan Delivery, 64)
		wg.Add(1)
		go func(ch <-chan Delivery) {
			defer wg.Done()
			for d := range ch {
				handleOne(ctx, p, d, processed)
			}
		}(shards[i])
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()
		for d := range deliveries {
			driverID, ok := peekDriverID(d.Body())
			shard := 0
			if ok {
				shard = int(uint64(driverID) % uint64(concurrency))
			}
			select {
			case shards[shard] <- d:
			case <-ctx.Done():
				d.Requeue()
			}
		}
	}()
}

func handleOne(ctx context.Context, p *Processor, d Delivery, processed *atomic.Int64) {
	defer p.recoverUnknown(ctx, d)
	p.Handle(ctx, d)
	processed.Add(1)
}

func runHeartbeat(ctx context.Context, processed *atomic.Int64, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug("worker heartbeat", "processed", processed.Load())
		}
	}
}
