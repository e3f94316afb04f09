package history

import (
	"context"
	"fmt"

	"github.com/movein/feedback-pipeline/durable"
	"github.com/movein/feedback-pipeline/feedback"
	"github.com/movein/feedback-pipeline/hotstore"
)

// defaultEMAAlpha must match worker.ProcessorConfig's default so a replayed
// timeline agrees with what the worker actually wrote to the hot store.
const defaultEMAAlpha = 0.1

// Reconstructor rebuilds a driver's score timeline from durable records,
// independent of whatever is currently cached in the hot store.
type Reconstructor struct {
	durable  durable.Store
	hot      hotstore.Store
	emaAlpha float64
}

// New builds a Reconstructor. alpha defaults to 0.1 (worker.ProcessorConfig's
// default) when zero.
func New(durableStore durable.Store, hotStore hotstore.Store, alpha float64) *Reconstructor {
	if alpha == 0 {
		alpha = defaultEMAAlpha
	}
	return &Reconstructor{durable: durableStore, hot: hotStore, emaAlpha: alpha}
}

// Reconstruct loads driverID's durable feedback history and replays the EMA
// update oldest-first to build a score timeline, then reverses both the
// records and the timeline to newest-first for display. The result also
// carries the driver's current alert-lock state straight from the hot
// store, so the route shows live alert status alongside the historical
// timeline.
func (r *Reconstructor) Reconstruct(ctx context.Context, driverID int64) (feedback.History, error) {
	name, err := r.durable.DriverName(ctx, driverID)
	if err != nil {
		return feedback.History{}, fmt.Errorf("history: resolve driver %d name: %w", driverID, err)
	}

	records, err := r.durable.History(ctx, driverID)
	if err != nil {
		return feedback.History{}, fmt.Errorf("history: load records for driver %d: %w", driverID, err)
	}

	locked, err := r.hot.CheckAlertLock(ctx, driverID)
	if err != nil {
		return feedback.History{}, fmt.Errorf("history: check alert lock for driver %d: %w", driverID, err)
	}

	timeline := r.replay(records)

	h := feedback.History{
		DriverID:      driverID,
		DriverName:    name,
		Records:       records,
		ScoreTimeline: timeline,
		AlertActive:   locked,
	}
	return h, nil
}

// replay walks records oldest-first (the durable store returns them
// newest-first) applying the same EMA the worker applies live, then
// reverses the resulting timeline back to newest-first.
func (r *Reconstructor) replay(records []feedback.Record) []feedback.ScorePoint {
	if len(records) == 0 {
		return nil
	}

	timeline := make([]feedback.ScorePoint, 0, len(records))
	avg := feedback.NeutralAnchor
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		avg = r.emaAlpha*rec.SentimentScore + (1-r.emaAlpha)*avg
		timeline = append(timeline, feedback.ScorePoint{Timestamp: rec.CreatedAt, AvgScore: avg})
	}

	for i, j := 0, len(timeline)-1; i < j; i, j = i+1, j-1 {
		timeline[i], timeline[j] = timeline[j], timeline[i]
	}
	return timeline
}
