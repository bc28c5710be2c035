package metrics

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestNewRecorderDoesNotError(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r == nil {
		t.Fatal("expected a non-nil Recorder")
	}
}

func TestRecorderRecordsWithoutPanicking(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	r.TaskSubmitted(ctx)
	r.TaskFinalized(ctx, "succeeded", 3, 1200, 0.05)
	r.OutboxBacklog(ctx, 1)
	r.OutboxBacklog(ctx, -1)
	r.ClassifyDuration(ctx, 0.002)
}

func TestHandlerServesExposition(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()

	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
