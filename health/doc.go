// Package health provides reusable health check functions for the
// feedback pipeline's dependencies.
//
// # Health Check Functions
//
//   - RedisCheck: ping the hot store
//   - PostgresCheck: ping the durable log's connection pool
//   - AMQPCheck: verify the queue transport's connection is open
//   - NetworkCheck: verify TCP connectivity to a host:port, used before a
//     client has connected at all
//   - Combine: aggregate multiple health checks into a single status
//
// # Usage Example
//
//	status := health.Combine(
//		health.RedisCheck(ctx, redisClient),
//		health.PostgresCheck(ctx, pgPool),
//		health.AMQPCheck(amqpConn),
//	)
//	if status.IsUnhealthy() {
//		log.Printf("health check failed: %s", status.Message)
//	}
//
// # Health Status Priority
//
// When combining health checks with Combine(), the result follows this
// priority: unhealthy if any check is unhealthy, degraded if any check is
// degraded and none are unhealthy, healthy otherwise.
package health
