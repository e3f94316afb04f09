package hotstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/movein/feedback-pipeline/feedback"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStoreFromClient(client), mr
}

func TestGetReputation_DefaultsToNeutralAnchor(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rep, err := store.GetReputation(ctx, 42)
	if err != nil {
		t.Fatalf("GetReputation: %v", err)
	}
	if rep.DriverID != 42 {
		t.Errorf("DriverID = %d, want 42", rep.DriverID)
	}
	if rep.AvgScore != feedback.NeutralAnchor {
		t.Errorf("AvgScore = %v, want %v", rep.AvgScore, feedback.NeutralAnchor)
	}
	if !rep.LastUpdated.IsZero() {
		t.Errorf("LastUpdated = %v, want zero", rep.LastUpdated)
	}
}

func TestSetReputation_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	want := feedback.Reputation{DriverID: 7, AvgScore: 4.2, LastUpdated: now}

	if err := store.SetReputation(ctx, want); err != nil {
		t.Fatalf("SetReputation: %v", err)
	}

	got, err := store.GetReputation(ctx, 7)
	if err != nil {
		t.Fatalf("GetReputation: %v", err)
	}
	if got.AvgScore != want.AvgScore {
		t.Errorf("AvgScore = %v, want %v", got.AvgScore, want.AvgScore)
	}
	if !got.LastUpdated.Equal(want.LastUpdated) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, want.LastUpdated)
	}
}

func TestSetReputation_DefaultsLastUpdatedWhenZero(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.SetReputation(ctx, feedback.Reputation{DriverID: 9, AvgScore: 3.0}); err != nil {
		t.Fatalf("SetReputation: %v", err)
	}

	got, err := store.GetReputation(ctx, 9)
	if err != nil {
		t.Fatalf("GetReputation: %v", err)
	}
	if got.LastUpdated.IsZero() {
		t.Error("expected LastUpdated to be stamped, got zero")
	}
}

func TestAlertLock_CooldownInvariant(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	locked, err := store.CheckAlertLock(ctx, 100)
	if err != nil {
		t.Fatalf("CheckAlertLock: %v", err)
	}
	if locked {
		t.Fatal("expected no lock before SetAlertLock")
	}

	if err := store.SetAlertLock(ctx, 100, 24*time.Hour); err != nil {
		t.Fatalf("SetAlertLock: %v", err)
	}

	locked, err = store.CheckAlertLock(ctx, 100)
	if err != nil {
		t.Fatalf("CheckAlertLock: %v", err)
	}
	if !locked {
		t.Fatal("expected lock active immediately after SetAlertLock")
	}

	// Simulate cooldown expiry and confirm the lock releases.
	mr.FastForward(25 * time.Hour)
	locked, err = store.CheckAlertLock(ctx, 100)
	if err != nil {
		t.Fatalf("CheckAlertLock: %v", err)
	}
	if locked {
		t.Fatal("expected lock to expire after ttl elapses")
	}
}

func TestAlertLock_IndependentPerDriver(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.SetAlertLock(ctx, 1, time.Hour); err != nil {
		t.Fatalf("SetAlertLock: %v", err)
	}

	locked, err := store.CheckAlertLock(ctx, 2)
	if err != nil {
		t.Fatalf("CheckAlertLock: %v", err)
	}
	if locked {
		t.Error("expected driver 2's lock to be independent of driver 1's")
	}
}
