package durable

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/movein/feedback-pipeline/feedback"
)

// newIntegrationStore connects to a real Postgres instance pointed to by
// DURABLE_TEST_DATABASE_URL and migrates it. Tests in this file are
// skipped when that variable is unset, since the durable package has no
// in-memory double for pgxpool the way hotstore has miniredis for Redis.
func newIntegrationStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("DURABLE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DURABLE_TEST_DATABASE_URL not set; skipping durable integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, Options{URL: url})
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func TestPostgresStore_InsertAndExists(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	sc := feedback.Scored{
		Event: feedback.Event{
			FeedbackID: "fb-insert-exists-1",
			DriverID:   1001,
			EntityType: feedback.EntityDriver,
			Text:       "the driver was great",
			Timestamp:  time.Now().UTC(),
		},
		SentimentScore: 2.0,
	}

	exists, err := store.Exists(ctx, sc.FeedbackID)
	if err != nil {
		t.Fatalf("Exists (before insert): %v", err)
	}
	if exists {
		t.Fatal("expected feedback to not exist before insert")
	}

	if err := store.Insert(ctx, sc); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	exists, err = store.Exists(ctx, sc.FeedbackID)
	if err != nil {
		t.Fatalf("Exists (after insert): %v", err)
	}
	if !exists {
		t.Fatal("expected feedback to exist after insert")
	}
}

func TestPostgresStore_Insert_DuplicateReturnsErrDuplicateFeedback(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	sc := feedback.Scored{
		Event: feedback.Event{
			FeedbackID: "fb-duplicate-1",
			DriverID:   1002,
			EntityType: feedback.EntityTrip,
			Text:       "fine trip",
			Timestamp:  time.Now().UTC(),
		},
		SentimentScore: 0.0,
	}

	if err := store.Insert(ctx, sc); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	err := store.Insert(ctx, sc)
	if err != feedback.ErrDuplicateFeedback {
		t.Fatalf("second Insert error = %v, want feedback.ErrDuplicateFeedback", err)
	}
}

func TestPostgresStore_DriverName_FallsBackWhenMissing(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	name, err := store.DriverName(ctx, 999999)
	if err != nil {
		t.Fatalf("DriverName: %v", err)
	}
	if name != "Driver 999999" {
		t.Errorf("DriverName = %q, want fallback \"Driver 999999\"", name)
	}
}

func TestPostgresStore_History_NewestFirst(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	driverID := int64(2002)
	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"fb-hist-1", "fb-hist-2", "fb-hist-3"} {
		sc := feedback.Scored{
			Event: feedback.Event{
				FeedbackID: id,
				DriverID:   driverID,
				EntityType: feedback.EntityDriver,
				Text:       "ok",
				Timestamp:  base.Add(time.Duration(i) * time.Minute),
			},
			SentimentScore: float64(i),
		}
		if err := store.Insert(ctx, sc); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	records, err := store.History(ctx, driverID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if records[0].FeedbackID != "fb-hist-3" {
		t.Errorf("records[0].FeedbackID = %q, want newest first (fb-hist-3)", records[0].FeedbackID)
	}
	if records[2].FeedbackID != "fb-hist-1" {
		t.Errorf("records[2].FeedbackID = %q, want oldest last (fb-hist-1)", records[2].FeedbackID)
	}
}
