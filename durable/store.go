package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movein/feedback-pipeline/feedback"
)

// schema creates the tables durable owns. The drivers table is normally
// managed by an upstream service; Migrate creates it here only so
// DriverName (used by history reconstruction) has somewhere to resolve
// names against in a standalone deployment or test environment.
const schema = `
CREATE TABLE IF NOT EXISTS drivers (
	id   BIGINT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback_log (
	id              BIGSERIAL PRIMARY KEY,
	feedback_id     TEXT NOT NULL UNIQUE,
	driver_id       BIGINT NOT NULL,
	entity_type     TEXT NOT NULL,
	feedback_text   TEXT NOT NULL,
	sentiment_score DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS feedback_log_driver_id_created_at_idx
	ON feedback_log (driver_id, created_at DESC);
`

// pgUniqueViolation is the PostgreSQL error code for a unique constraint
// violation, used to detect a racing duplicate insert.
const pgUniqueViolation = "23505"

// Store is the durable-log capability the worker and history packages
// depend on. PostgresStore is the sole implementation.
type Store interface {
	// Exists reports whether feedbackID has already been recorded.
	Exists(ctx context.Context, feedbackID string) (bool, error)

	// Insert appends a scored feedback row. A unique violation on
	// feedback_id (a racing duplicate that got past Exists) is returned as
	// feedback.ErrDuplicateFeedback rather than silently ignored.
	Insert(ctx context.Context, s feedback.Scored) error

	// DriverName resolves a driver's display name, falling back to
	// "Driver <id>" when the drivers table has no matching row.
	DriverName(ctx context.Context, driverID int64) (string, error)

	// History returns every feedback_log row for driverID, newest first.
	History(ctx context.Context, driverID int64) ([]feedback.Record, error)

	Close()
}

// Options configures a PostgresStore connection pool.
type Options struct {
	URL            string
	MinConns       int32
	MaxConns       int32
	CommandTimeout time.Duration
}

// PostgresStore implements Store over jackc/pgx/v5's pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds a connection pool per opts and verifies it with
// a Ping before returning.
func NewPostgresStore(ctx context.Context, opts Options) (*PostgresStore, error) {
	if opts.MinConns == 0 {
		opts.MinConns = 5
	}
	if opts.MaxConns == 0 {
		opts.MaxConns = 20
	}
	if opts.CommandTimeout == 0 {
		opts.CommandTimeout = 60 * time.Second
	}

	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("durable: parse postgres url: %w", err)
	}
	cfg.MinConns = opts.MinConns
	cfg.MaxConns = opts.MaxConns
	cfg.ConnConfig.ConnectTimeout = opts.CommandTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("durable: create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("durable: connect to postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate creates feedback_log and drivers if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("durable: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, feedbackID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM feedback_log WHERE feedback_id = $1)",
		feedbackID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("durable: check feedback %s exists: %w", feedbackID, err)
	}
	return exists, nil
}

func (s *PostgresStore) Insert(ctx context.Context, sc feedback.Scored) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback_log
			(feedback_id, driver_id, entity_type, feedback_text, sentiment_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		sc.FeedbackID, sc.DriverID, string(sc.EntityType), sc.Text, sc.SentimentScore, sc.Timestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return feedback.ErrDuplicateFeedback
		}
		return fmt.Errorf("durable: insert feedback %s: %w", sc.FeedbackID, err)
	}
	return nil
}

func (s *PostgresStore) DriverName(ctx context.Context, driverID int64) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, "SELECT name FROM drivers WHERE id = $1", driverID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Sprintf("Driver %d", driverID), nil
	}
	if err != nil {
		return "", fmt.Errorf("durable: lookup driver %d name: %w", driverID, err)
	}
	return name, nil
}

func (s *PostgresStore) History(ctx context.Context, driverID int64) ([]feedback.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT feedback_id, feedback_text, sentiment_score, created_at
		FROM feedback_log
		WHERE driver_id = $1
		ORDER BY created_at DESC
	`, driverID)
	if err != nil {
		return nil, fmt.Errorf("durable: history for driver %d: %w", driverID, err)
	}
	defer rows.Close()

	var records []feedback.Record
	for rows.Next() {
		var r feedback.Record
		if err := rows.Scan(&r.FeedbackID, &r.FeedbackText, &r.SentimentScore, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("durable: scan history row for driver %d: %w", driverID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("durable: iterate history for driver %d: %w", driverID, err)
	}
	return records, nil
}

// Ping satisfies health.Pinger, used by the ingestion server's readiness
// check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
