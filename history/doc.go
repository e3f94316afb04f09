// Package history reconstructs a driver's reputation timeline from the
// durable feedback log by replaying the EMA update oldest-first, in
// created_at order. The worker applies the EMA in processing order, so the
// replayed values can differ from the live hot-store average when feedback
// was processed out of timestamp order. The hot store's current snapshot is
// read only to report whether an alert is active.
package history
