package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/forgeai/orchestrator/internal/intake"
	"github.com/forgeai/orchestrator/internal/store"
	"github.com/forgeai/orchestrator/internal/task"
)

func testServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	srv, err := NewServer(Config{Bind: "127.0.0.1:0"}, intake.New(s), discardLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, s
}

func TestHandleSubmitAndGet(t *testing.T) {
	srv, _ := testServer(t)

	body, _ := json.Marshal(submitRequest{Title: "Fix it", Description: "d"})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.routeTasks(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	var submitResp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &submitResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	id := submitResp["task_id"]
	if id == 0 {
		t.Fatal("expected nonzero task_id")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/tasks/1", nil)
	getReq.URL.Path = "/tasks/1"
	getRec := httptest.NewRecorder()
	srv.routeTaskDetail(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", getRec.Code, http.StatusOK)
	}
	var got task.Task
	if err := json.Unmarshal(getRec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Title != "Fix it" {
		t.Errorf("Title = %q, want %q", got.Title, "Fix it")
	}
}

func TestHandleSubmitRejectsInvalid(t *testing.T) {
	srv, _ := testServer(t)

	body, _ := json.Marshal(submitRequest{Title: "", Description: "d"})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.routeTasks(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleGetMissingTask(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/tasks/999", nil)
	rec := httptest.NewRecorder()
	srv.routeTaskDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleCancel(t *testing.T) {
	srv, s := testServer(t)

	id, err := s.InsertTask(task.Task{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if _, err := s.CASTaskStatus(id, task.StatusPending, task.StatusClassifying); err != nil {
		t.Fatalf("CASTaskStatus: %v", err)
	}
	if _, err := s.BeginExecution(id, "SingleShot"); err != nil {
		t.Fatalf("BeginExecution: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/tasks/1/cancel", nil)
	req.URL.Path = "/tasks/1/cancel"
	rec := httptest.NewRecorder()
	srv.routeTaskDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	got, _ := s.GetTask(id)
	if got.Status != task.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", got.Status)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.NewDecoder(io.NopCloser(bytes.NewReader(rec.Body.Bytes()))).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["healthy"] != true {
		t.Errorf("healthy = %v, want true", body["healthy"])
	}
}

type fakeBudgetSource struct{}

func (fakeBudgetSource) WeeklyUsagePct(modelID string) float64 { return 0.9 }
func (fakeBudgetSource) IsInHeadroomWarning(modelID string, threshold float64) bool {
	return true
}

func TestHandleStatusReportsBudget(t *testing.T) {
	srv, _ := testServer(t)
	srv.SetBudgetSource(fakeBudgetSource{}, []string{"gpt-test"})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Models []modelBudgetStatus `json:"models"`
	}
	if err := json.NewDecoder(io.NopCloser(bytes.NewReader(rec.Body.Bytes()))).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Models) != 1 || body.Models[0].ModelID != "gpt-test" {
		t.Fatalf("Models = %+v, want one entry for gpt-test", body.Models)
	}
	if !body.Models[0].HeadroomWarning {
		t.Error("expected headroom warning to be reported")
	}
}

func TestHandleStatusOmitsBudgetWhenUnset(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	var body map[string]any
	if err := json.NewDecoder(io.NopCloser(bytes.NewReader(rec.Body.Bytes()))).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["models"]; ok {
		t.Error("expected no models key when no budget source is set")
	}
}
