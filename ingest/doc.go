// Package ingest is the HTTP surface riders submit feedback through: a chi
// router validating and publishing feedback events onto the queue package's
// durable transport, plus health, metrics, and read-only history routes.
package ingest
