// Package pipeline is the root of the driver feedback sentiment pipeline:
// an HTTP ingestion endpoint publishes rider feedback onto a durable queue,
// a worker pool scores each message's sentiment, folds it into a
// per-driver reputation average, persists it exactly once, and raises an
// alert when reputation crosses a threshold.
//
// # Core Concepts
//
//   - Event (package feedback): the immutable feedback payload a rider
//     submits.
//   - Reputation (package feedback): a driver's EMA-smoothed sentiment
//     average, held hot in Redis and replayable from the durable log.
//   - Dead-letter queue (package queue): a message that fails validation,
//     scoring, or persistence is routed to feedback_dlq with a structured
//     diagnostic header instead of being retried forever.
//
// # Architecture
//
//   - ingest: HTTP surface (chi) that validates and publishes events.
//   - queue: AMQP transport between ingestion and the worker, plus DLQ.
//   - worker: consumes events and runs the scoring/persistence sequence.
//   - sentiment: the rule-based scorer.
//   - hotstore: Redis-backed live reputation and alert-cooldown state.
//   - durable: Postgres-backed feedback log and driver lookup.
//   - alert: notification sinks triggered on reputation-threshold crossing.
//   - history: read-side reconstruction of a driver's score timeline.
//   - health: liveness/readiness probes over the above dependencies.
//   - config: YAML-plus-environment configuration shared by both binaries.
//
// This package itself holds no runtime logic; cmd/feedback-ingest and
// cmd/feedback-worker wire the packages above into the two deployable
// binaries.
package pipeline
