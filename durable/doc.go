// Package durable provides the append-only system of record for scored
// feedback: the feedback_log table (one row per accepted feedback_id,
// enforced by a unique constraint used for idempotency detection) and
// read access to the externally managed drivers table used to resolve
// driver names for history display.
package durable
