// Package health provides reusable health check functions for the feedback
// pipeline's dependencies: Redis, PostgreSQL, and RabbitMQ.
package health

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Health status constants represent the operational state of a component.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status represents the health state of a component or dependency.
type Status struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (s Status) IsHealthy() bool   { return s.Status == StatusHealthy }
func (s Status) IsDegraded() bool  { return s.Status == StatusDegraded }
func (s Status) IsUnhealthy() bool { return s.Status == StatusUnhealthy }

func NewHealthyStatus(message string) Status {
	return Status{Status: StatusHealthy, Message: message}
}

func NewDegradedStatus(message string, details map[string]any) Status {
	return Status{Status: StatusDegraded, Message: message, Details: details}
}

func NewUnhealthyStatus(message string, details map[string]any) Status {
	return Status{Status: StatusUnhealthy, Message: message, Details: details}
}

// Pinger is satisfied by *redis.Client, *pgxpool.Pool, and any other
// dependency whose liveness check is a context-bound Ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisCheck pings the hot store and reports its liveness.
func RedisCheck(ctx context.Context, client Pinger) Status {
	if err := client.Ping(ctx); err != nil {
		return NewUnhealthyStatus("redis ping failed", map[string]any{"error": err.Error()})
	}
	return NewHealthyStatus("redis reachable")
}

// PostgresCheck pings the durable log's connection pool and reports its
// liveness.
func PostgresCheck(ctx context.Context, pool Pinger) Status {
	if err := pool.Ping(ctx); err != nil {
		return NewUnhealthyStatus("postgres ping failed", map[string]any{"error": err.Error()})
	}
	return NewHealthyStatus("postgres reachable")
}

// AMQPConnChecker reports whether an AMQP connection is still open, as
// satisfied by *amqp091.Connection.
type AMQPConnChecker interface {
	IsClosed() bool
}

// AMQPCheck reports the liveness of the queue transport's connection.
func AMQPCheck(conn AMQPConnChecker) Status {
	if conn == nil || conn.IsClosed() {
		return NewUnhealthyStatus("amqp connection closed", nil)
	}
	return NewHealthyStatus("amqp connection open")
}

// NetworkCheck verifies TCP connectivity to a host and port, used as a
// pre-flight check before any of the dependency clients connect.
func NetworkCheck(ctx context.Context, host string, port int) Status {
	if host == "" {
		return NewUnhealthyStatus("host cannot be empty", nil)
	}
	if port <= 0 || port > 65535 {
		return NewUnhealthyStatus(fmt.Sprintf("invalid port number: %d", port), map[string]any{"port": port})
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return NewUnhealthyStatus(fmt.Sprintf("failed to connect to %s", address), map[string]any{
			"host": host, "port": port, "error": err.Error(),
		})
	}
	conn.Close()
	return NewHealthyStatus(fmt.Sprintf("successfully connected to %s", address))
}

// Combine aggregates multiple health checks into a single status. Any
// unhealthy check makes the result unhealthy; otherwise any degraded check
// makes it degraded; otherwise it's healthy.
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return NewHealthyStatus("no checks provided")
	}

	var unhealthyChecks, degradedChecks []string
	var healthyCount int

	for _, check := range checks {
		switch check.Status {
		case StatusUnhealthy:
			msg := check.Message
			if msg == "" {
				msg = "unnamed check"
			}
			unhealthyChecks = append(unhealthyChecks, msg)
		case StatusDegraded:
			msg := check.Message
			if msg == "" {
				msg = "unnamed check"
			}
			degradedChecks = append(degradedChecks, msg)
		case StatusHealthy:
			healthyCount++
		}
	}

	if len(unhealthyChecks) > 0 {
		return NewUnhealthyStatus(
			fmt.Sprintf("%d check(s) failed", len(unhealthyChecks)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthyChecks),
				"degraded":      len(degradedChecks),
				"healthy":       healthyCount,
				"failed_checks": unhealthyChecks,
			},
		)
	}

	if len(degradedChecks) > 0 {
		return NewDegradedStatus(
			fmt.Sprintf("%d check(s) degraded", len(degradedChecks)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degradedChecks),
				"healthy":         healthyCount,
				"degraded_checks": degradedChecks,
			},
		)
	}

	return NewHealthyStatus(fmt.Sprintf("all %d check(s) passed", len(checks)))
}
