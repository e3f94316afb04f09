// Package queue provides the durable AMQP transport between the
// ingestion endpoint and the processor worker: a persistent
// "feedback_queue" paired with a "feedback_dlq" dead-letter queue.
//
// # Topology
//
// feedback_queue and feedback_dlq are both declared durable, with no
// dead-letter-exchange arguments, by Publisher and Consumer alike at
// connect time. The broker never routes anything to feedback_dlq on its
// own: dead-lettering is done only by Delivery.DeadLetter and
// Publisher.DeadLetter.
//
// # Delivery contract
//
// Messages are persistent, content-type application/json, body = the
// JSON encoding of feedback.Event. Consumers use manual acknowledgement
// with a bounded prefetch; a message is acked only after every worker
// side effect has succeeded, and explicitly dead-lettered (by publishing
// to feedback_dlq with diagnostic headers, then Nack without requeue)
// on unrecoverable failure.
//
// # Reconnection
//
// Consumer reconnects on connection loss with capped exponential backoff,
// the same shape as a typical AMQP091 worker reconnect loop.
package queue
