package hotstore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/movein/feedback-pipeline/feedback"
)

// driverScoresKey is the single hash holding every driver's hot reputation.
const driverScoresKey = "driver_scores"

// alertLockPrefix namespaces the per-driver alert cooldown keys.
const alertLockPrefix = "driver_alert_sent:"

// Store is the hot-path capability the worker depends on for reputation
// reads/writes and alert cooldown bookkeeping. RedisStore is the sole
// implementation.
type Store interface {
	// GetReputation returns a driver's current reputation, or
	// feedback.NeutralAnchor as AvgScore with a zero LastUpdated when the
	// driver has no prior history.
	GetReputation(ctx context.Context, driverID int64) (feedback.Reputation, error)

	// SetReputation overwrites a driver's hot reputation record.
	SetReputation(ctx context.Context, rep feedback.Reputation) error

	// CheckAlertLock reports whether an alert cooldown is currently active
	// for driverID.
	CheckAlertLock(ctx context.Context, driverID int64) (bool, error)

	// SetAlertLock starts a cooldown window of ttl for driverID.
	SetAlertLock(ctx context.Context, driverID int64, ttl time.Duration) error

	Close() error
}

// Options configures a RedisStore connection.
type Options struct {
	// URL is the Redis connection string, e.g. "redis://localhost:6379/0".
	URL string

	TLS *tls.Config

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// PoolSize bounds the number of connections go-redis keeps open,
	// mirroring the original RedisManager's max_connections.
	PoolSize int
}

// RedisStore implements Store over go-redis/v9.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials Redis per opts and verifies the connection with a
// Ping before returning, the same fail-fast pattern the sdk's queue client
// uses for its own Redis connection.
func NewRedisStore(opts Options) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379/0"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 50
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("hotstore: parse redis url: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout
	redisOpts.PoolSize = opts.PoolSize

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("hotstore: connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an already-constructed client, used by
// tests to point a RedisStore at a miniredis instance.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// scoreBlob is the JSON value stored per driver in the driver_scores hash.
type scoreBlob struct {
	AvgScore    float64   `json:"avg_score"`
	LastUpdated time.Time `json:"last_updated"`
}

func (s *RedisStore) GetReputation(ctx context.Context, driverID int64) (feedback.Reputation, error) {
	data, err := s.client.HGet(ctx, driverScoresKey, strconv.FormatInt(driverID, 10)).Result()
	if err == redis.Nil {
		return feedback.Reputation{
			DriverID: driverID,
			AvgScore: feedback.NeutralAnchor,
		}, nil
	}
	if err != nil {
		return feedback.Reputation{}, fmt.Errorf("hotstore: hget driver %d: %w", driverID, err)
	}

	var blob scoreBlob
	if err := json.Unmarshal([]byte(data), &blob); err != nil {
		return feedback.Reputation{}, fmt.Errorf("hotstore: unmarshal driver %d score: %w", driverID, err)
	}

	return feedback.Reputation{
		DriverID:    driverID,
		AvgScore:    blob.AvgScore,
		LastUpdated: blob.LastUpdated,
	}, nil
}

func (s *RedisStore) SetReputation(ctx context.Context, rep feedback.Reputation) error {
	lastUpdated := rep.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	data, err := json.Marshal(scoreBlob{
		AvgScore:    rep.AvgScore,
		LastUpdated: lastUpdated,
	})
	if err != nil {
		return fmt.Errorf("hotstore: marshal driver %d score: %w", rep.DriverID, err)
	}

	if err := s.client.HSet(ctx, driverScoresKey, strconv.FormatInt(rep.DriverID, 10), data).Err(); err != nil {
		return fmt.Errorf("hotstore: hset driver %d: %w", rep.DriverID, err)
	}
	return nil
}

func (s *RedisStore) CheckAlertLock(ctx context.Context, driverID int64) (bool, error) {
	n, err := s.client.Exists(ctx, alertKey(driverID)).Result()
	if err != nil {
		return false, fmt.Errorf("hotstore: exists alert lock driver %d: %w", driverID, err)
	}
	return n > 0, nil
}

func (s *RedisStore) SetAlertLock(ctx context.Context, driverID int64, ttl time.Duration) error {
	if err := s.client.SetEx(ctx, alertKey(driverID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("hotstore: setex alert lock driver %d: %w", driverID, err)
	}
	return nil
}

// Ping satisfies health.Pinger, used by the ingestion server's readiness
// check.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func alertKey(driverID int64) string {
	return alertLockPrefix + strconv.FormatInt(driverID, 10)
}
