// Package hotstore provides the hot, low-latency view of per-driver
// reputation and alert cooldown state backed by Redis: a "driver_scores"
// hash of {avg_score, last_updated} blobs keyed by driver ID, and a
// "driver_alert_sent:<id>" TTL key per cooldown window.
package hotstore
