package executor

import (
	"context"
	"log/slog"

	"github.com/forgeai/orchestrator/internal/store"
	"github.com/forgeai/orchestrator/internal/strategy"
	"github.com/forgeai/orchestrator/internal/task"
)

// workflowRunner is the slice of *Client that Dispatcher needs, narrowed to an
// interface so tests can exercise Dispatch without dialing a real Temporal server.
type workflowRunner interface {
	Run(ctx context.Context, t task.Task, relevantFiles []strategy.ContextFile) error
}

// Dispatcher implements intake.Dispatcher, starting a TaskExecutionWorkflow for every
// task the Intake Service accepts. It is what actually connects L12's intake path to
// L9's orchestration pipeline: without it, a submitted task's row would sit in Pending
// forever, since nothing else ever starts its workflow.
type Dispatcher struct {
	Client workflowRunner
	Store  *store.Store
	Logger *slog.Logger
}

var _ workflowRunner = (*Client)(nil)

// Dispatch loads the task and starts its workflow. Submit must not block on Temporal
// availability, so the start happens on its own goroutine; a failure here is logged,
// not returned, since the task row already exists and the reaper will eventually flag
// it as stuck if nothing ever picks it up.
func (d *Dispatcher) Dispatch(taskID int64) {
	go func() {
		t, err := d.Store.GetTask(taskID)
		if err != nil {
			d.Logger.Error("dispatcher: failed to load submitted task", "task_id", taskID, "error", err)
			return
		}
		if t == nil {
			d.Logger.Error("dispatcher: submitted task vanished before dispatch", "task_id", taskID)
			return
		}
		if err := d.Client.Run(context.Background(), *t, nil); err != nil {
			d.Logger.Error("dispatcher: failed to start workflow", "task_id", taskID, "error", err)
		}
	}()
}
