package reaper

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgeai/orchestrator/internal/store"
	"github.com/forgeai/orchestrator/internal/task"
)

func tempStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepAbandonsStaleExecutingTask(t *testing.T) {
	s := tempStore(t)
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

	r := New(s, Config{StaleWindow: 0}, nil, discardLogger())
	r.sweep()

	got, err := s.GetTask(id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != task.StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}

	rows, err := s.UndeliveredOutbox(10)
	if err != nil {
		t.Fatalf("UndeliveredOutbox: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 outbox row, got %d", len(rows))
	}
	if rows[0].Kind != string(task.EventTaskFailed) {
		t.Errorf("Kind = %q, want %q", rows[0].Kind, task.EventTaskFailed)
	}
}

func TestSweepLeavesFreshTasksAlone(t *testing.T) {
	s := tempStore(t)
	id, err := s.InsertTask(task.Task{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if _, err := s.CASTaskStatus(id, task.StatusPending, task.StatusClassifying); err != nil {
		t.Fatalf("CASTaskStatus: %v", err)
	}

	r := New(s, Config{StaleWindow: time.Hour}, nil, discardLogger())
	r.sweep()

	got, err := s.GetTask(id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != task.StatusClassifying {
		t.Errorf("Status = %q, want classifying (untouched)", got.Status)
	}
}
