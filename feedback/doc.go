// Package feedback defines the wire and domain types shared across the
// ingestion, queue, worker, durable, and history packages: the immutable
// FeedbackEvent submitted by a client, the ScoredFeedback row persisted
// exactly once per feedback_id, and the small value types built on top of
// them for reputation and history display.
package feedback
