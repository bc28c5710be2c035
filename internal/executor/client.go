package executor

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/forgeai/orchestrator/internal/strategy"
	"github.com/forgeai/orchestrator/internal/task"
)

// Client starts TaskExecutionWorkflow runs against a Temporal deployment.
type Client struct {
	temporal     client.Client
	taskQueue    string
	deadlines    Deadlines
	modelsByTier map[string]string
}

// NewClient dials Temporal and returns a Client bound to taskQueue. modelsByTier maps a
// strategy.ModelTier name ("small", "mid", "large") to the concrete provider model id
// the workflow resolves once it has classified the task (spec §4.8's tier table).
func NewClient(hostPort, taskQueue string, deadlines Deadlines, modelsByTier map[string]string) (*Client, error) {
	c, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		return nil, fmt.Errorf("executor: dial temporal at %s: %w", hostPort, err)
	}
	return &Client{temporal: c, taskQueue: taskQueue, deadlines: deadlines, modelsByTier: modelsByTier}, nil
}

// Close releases the underlying Temporal connection.
func (c *Client) Close() {
	c.temporal.Close()
}

// Run starts a task's lifecycle workflow with the deterministic workflow ID derived
// from the task's id, relying on Temporal's workflow-ID-reuse rejection to give run()
// idempotence for a task that is (re-)submitted while its workflow is still active.
func (c *Client) Run(ctx context.Context, t task.Task, relevantFiles []strategy.ContextFile) error {
	_, err := c.temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(t.ID),
		TaskQueue: c.taskQueue,
	}, TaskExecutionWorkflow, TaskRequest{
		Task:          t,
		ModelsByTier:  c.modelsByTier,
		RelevantFiles: relevantFiles,
		Deadlines:     c.deadlines,
	})
	if err != nil {
		return fmt.Errorf("executor: start workflow for task %d: %w", t.ID, err)
	}
	return nil
}

// Cancel signals cancellation to a running task's workflow (spec §4.9's Cancelled path).
func (c *Client) Cancel(ctx context.Context, taskID int64) error {
	return c.temporal.CancelWorkflow(ctx, WorkflowID(taskID), "")
}
