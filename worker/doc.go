// Package worker implements the processor worker: the consumer-side
// orchestration that turns a raw feedback_queue delivery into a scored,
// durable, reputation-updating, alert-aware side effect, per message, in
// order: parse/validate, idempotency check, score, read reputation, EMA
// update, write reputation, durable insert, alert decision, acknowledge.
//
// Run wires N concurrent goroutines pulling from a queue.Consumer, with
// graceful shutdown on SIGTERM/SIGINT bounded by a shutdown timeout.
package worker
