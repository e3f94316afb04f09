package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/movein/feedback-pipeline/feedback"
	"github.com/movein/feedback-pipeline/health"
)

type fakePublisher struct {
	published []feedback.Event
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, event feedback.Event) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

type fakeHistoryReader struct {
	hist feedback.History
	err  error
}

func (r *fakeHistoryReader) Reconstruct(_ context.Context, driverID int64) (feedback.History, error) {
	if r.err != nil {
		return feedback.History{}, r.err
	}
	r.hist.DriverID = driverID
	return r.hist, nil
}

func newTestServer(pub *fakePublisher, hist *fakeHistoryReader) *Server {
	return New(Deps{
		Port:      0,
		Publisher: pub,
		History:   hist,
	}, nil)
}

func TestSubmitFeedback_Valid_Returns202AndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	srv := newTestServer(pub, &fakeHistoryReader{})

	body := `{"feedback_id":"fb-1","driver_id":42,"entity_type":"driver","text":"great ride","timestamp":"2026-01-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/feedback", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	if len(pub.published) != 1 || pub.published[0].FeedbackID != "fb-1" {
		t.Fatalf("expected event to be published, got %+v", pub.published)
	}

	var resp submitFeedbackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.FeedbackID != "fb-1" {
		t.Errorf("FeedbackID = %q, want fb-1", resp.FeedbackID)
	}
}

func TestSubmitFeedback_MissingFields_Returns422(t *testing.T) {
	pub := &fakePublisher{}
	srv := newTestServer(pub, &fakeHistoryReader{})

	body := `{"feedback_id":"fb-2"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/feedback", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if len(pub.published) != 0 {
		t.Error("expected no event to be published on validation failure")
	}
}

func TestSubmitFeedback_MalformedJSON_Returns400(t *testing.T) {
	pub := &fakePublisher{}
	srv := newTestServer(pub, &fakeHistoryReader{})

	req := httptest.NewRequest(http.MethodPost, "/v1/feedback", bytes.NewBufferString(`{not json`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSubmitFeedback_PublishFailure_Returns503(t *testing.T) {
	pub := &fakePublisher{err: context.DeadlineExceeded}
	srv := newTestServer(pub, &fakeHistoryReader{})

	body := `{"feedback_id":"fb-3","driver_id":1,"entity_type":"driver","text":"ok","timestamp":"2026-01-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/feedback", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestDriverHistory_ReturnsReconstructedTimeline(t *testing.T) {
	hist := &fakeHistoryReader{hist: feedback.History{
		DriverName: "Jane",
		Records:    []feedback.Record{{FeedbackID: "fb-1"}},
	}}
	srv := newTestServer(&fakePublisher{}, hist)

	req := httptest.NewRequest(http.MethodGet, "/v1/drivers/7/history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var got feedback.History
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.DriverID != 7 || got.DriverName != "Jane" {
		t.Errorf("got %+v", got)
	}
}

func TestDriverHistory_NonIntegerID_Returns400(t *testing.T) {
	srv := newTestServer(&fakePublisher{}, &fakeHistoryReader{})

	req := httptest.NewRequest(http.MethodGet, "/v1/drivers/not-a-number/history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHealthz_AlwaysOK(t *testing.T) {
	srv := newTestServer(&fakePublisher{}, &fakeHistoryReader{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReadyz_UnhealthyDependency_Returns503(t *testing.T) {
	srv := New(Deps{
		Publisher: &fakePublisher{},
		History:   &fakeHistoryReader{},
		HealthCheck: func(context.Context) health.Status {
			return health.NewUnhealthyStatus("redis down", nil)
		},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestReadyz_HealthyDependency_Returns200(t *testing.T) {
	srv := New(Deps{
		Publisher: &fakePublisher{},
		History:   &fakeHistoryReader{},
		HealthCheck: func(context.Context) health.Status {
			return health.NewHealthyStatus("all good")
		},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
