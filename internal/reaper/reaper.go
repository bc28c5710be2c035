// Package reaper implements the staleness sweep: a direct generalization of the
// teacher's health.CheckStuckDispatches from dispatch-process liveness to
// task/execution staleness (spec §7). It is the only component besides an owning
// worker allowed to move a task out of a non-terminal state.
package reaper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron"

	"github.com/forgeai/orchestrator/internal/metrics"
	"github.com/forgeai/orchestrator/internal/store"
	"github.com/forgeai/orchestrator/internal/task"
)

// Config configures the sweep.
type Config struct {
	Interval    time.Duration // how often the sweep runs
	StaleWindow time.Duration // spec §6: reaper-stale-window-sec
}

// DefaultConfig matches spec §6's suggested defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		StaleWindow: 300 * time.Second,
	}
}

// Reaper sweeps for tasks stuck in Classifying/Executing past the stale window and
// marks them abandoned, sealing the execution with a TaskFailed event.
type Reaper struct {
	store   *store.Store
	cfg     Config
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// New constructs a Reaper. rec may be nil to disable instrumentation.
func New(st *store.Store, cfg Config, rec *metrics.Recorder, logger *slog.Logger) *Reaper {
	return &Reaper{store: st, cfg: cfg, metrics: rec, logger: logger}
}

// Run schedules the sweep on a cron job, blocking until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", r.cfg.Interval)
	if err := c.AddFunc(spec, r.sweep); err != nil {
		return fmt.Errorf("reaper: schedule sweep: %w", err)
	}

	r.logger.Info("reaper starting", "interval", r.cfg.Interval, "stale_window", r.cfg.StaleWindow)
	c.Start()
	<-ctx.Done()
	c.Stop()
	return nil
}

// sweep finds stale tasks and abandons them. Abandoning is best-effort: a task whose
// workflow completes concurrently with the sweep simply loses the race inside
// Finalize's task-row CAS-style update and is left alone (the real completion wins).
func (r *Reaper) sweep() {
	stale, err := r.store.StaleExecuting(r.cfg.StaleWindow)
	if err != nil {
		r.logger.Error("reaper: failed to list stale tasks", "error", err)
		return
	}
	for _, t := range stale {
		r.abandon(t)
	}
}

const abandonedReason = "abandoned"

func (r *Reaper) abandon(t task.Task) {
	executionID, _, err := r.store.RunningExecutionID(t.ID)
	if err != nil {
		r.logger.Warn("reaper: could not look up running execution", "task_id", t.ID, "error", err)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"task_id": t.ID,
		"kind":    string(task.EventTaskFailed),
		"reason":  abandonedReason,
	})
	if err != nil {
		r.logger.Error("reaper: failed to marshal event payload", "error", err)
		return
	}

	err = r.store.Finalize(store.FinalizeInput{
		ExecutionID:        executionID,
		ExecutionStatus:    task.ExecutionFailed,
		FailureReason:      abandonedReason,
		TaskID:             t.ID,
		ExpectedTaskStatus: t.Status,
		TaskStatus:         task.StatusFailed,
		EventKind:          task.EventTaskFailed,
		EventPayload:       payload,
	})
	if err != nil {
		r.logger.Warn("reaper: could not abandon stale task", "task_id", t.ID, "from", t.Status, "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.TaskFinalized(context.Background(), abandonedReason, 0, 0, 0)
	}
	r.logger.Warn("reaper: abandoned stale task", "task_id", t.ID, "status", t.Status)
}
