package executor

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/forgeai/orchestrator/internal/strategy"
	"github.com/forgeai/orchestrator/internal/task"
)

// WorkflowID derives the deterministic Temporal workflow ID for a task, giving run()
// idempotence for free: Temporal rejects a second start under the same ID while the
// first is still running (spec §4.9, §8 "submitting the same task twice never produces
// two executions").
func WorkflowID(taskID int64) string {
	return fmt.Sprintf("task-%d", taskID)
}

// TaskRequest is the workflow's input: everything needed to run a task's full
// lifecycle without a prior round-trip to the store inside the workflow itself
// (workflow code must stay deterministic, so the intake/classify inputs travel in).
type TaskRequest struct {
	Task          task.Task
	ModelsByTier  map[string]string
	RelevantFiles []strategy.ContextFile
	Deadlines     Deadlines
}

// TaskExecutionWorkflow implements spec §4.9's eight-step lifecycle as a single
// Temporal workflow, branching on the selected strategy the way the teacher's
// CortexAgentWorkflow branches on review outcomes — one workflow history schema for
// every strategy rather than three workflow types.
func TaskExecutionWorkflow(ctx workflow.Context, req TaskRequest) error {
	logger := workflow.GetLogger(ctx)
	var a *Activities

	shortOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	}
	classifyOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1}, // the classifier never fails by construction
	}

	// ===== STEP 1: BEGIN CLASSIFYING =====
	beginClassifyCtx := workflow.WithActivityOptions(ctx, shortOpts)
	if err := workflow.ExecuteActivity(beginClassifyCtx, a.BeginClassifyingActivity, req.Task.ID).Get(ctx, nil); err != nil {
		logger.Error("begin classifying failed", "error", err)
		return err
	}

	// ===== STEP 2: CLASSIFY =====
	classifyCtx := workflow.WithActivityOptions(ctx, classifyOpts)
	var classification task.Classification
	if err := workflow.ExecuteActivity(classifyCtx, a.ClassifyActivity, ClassifyInput{
		TaskID:      req.Task.ID,
		Title:       req.Task.Title,
		Description: req.Task.Description,
		TypeHint:    string(req.Task.TypeHint),
	}).Get(ctx, &classification); err != nil {
		logger.Error("classify activity failed", "error", err)
		return err
	}
	req.Task.Classification = classification

	// ===== STEP 3: SELECT =====
	selection := strategy.Select(classification, req.Task.OverrideStrategy)
	modelID := req.ModelsByTier[string(selection.Tier)]

	// ===== STEP 4: BEGIN EXECUTION =====
	beginCtx := workflow.WithActivityOptions(ctx, shortOpts)
	var executionID int64
	if err := workflow.ExecuteActivity(beginCtx, a.BeginExecutionActivity, BeginExecutionInput{
		TaskID:   req.Task.ID,
		Strategy: string(selection.Strategy),
	}).Get(ctx, &executionID); err != nil {
		logger.Error("begin execution failed", "error", err)
		return err
	}

	// ===== STEP 5-6: EXECUTE STRATEGY, UNDER THE TASK DEADLINE =====
	deadline := req.Deadlines.For(classification.Complexity)
	runCtx, cancel := workflow.WithCancel(ctx)
	defer cancel()

	runOpts := workflow.ActivityOptions{
		StartToCloseTimeout: deadline,
		HeartbeatTimeout:    15 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1}, // the executor never retries a failed execution as a whole
	}
	runCtx = workflow.WithActivityOptions(runCtx, runOpts)

	future := workflow.ExecuteActivity(runCtx, a.RunStrategyActivity, RunStrategyInput{
		ExecutionID:   executionID,
		StrategyName:  selection.Strategy,
		Task:          req.Task,
		ModelID:       modelID,
		RelevantFiles: req.RelevantFiles,
	})

	outcome := OutcomeFailed
	var result strategy.Result

	timer := workflow.NewTimer(ctx, deadline)
	selector := workflow.NewSelector(ctx)
	selector.AddFuture(future, func(f workflow.Future) {
		if err := f.Get(ctx, &result); err != nil {
			if temporal.IsCanceledError(err) {
				outcome = OutcomeCancelled
			} else {
				outcome = OutcomeFailed
				result.Reason = err.Error()
			}
			return
		}
		if result.Succeeded {
			outcome = OutcomeSucceeded
		} else {
			outcome = OutcomeFailed
		}
	})
	selector.AddFuture(timer, func(workflow.Future) {
		// Deadline reached first: signal cancellation and give the activity a short
		// grace window to return partial totals before we abandon it (spec §5:
		// "if the strategy does not return within a grace window, the executor
		// abandons it and marks the task TimedOut").
		cancel()
		grace := workflow.NewTimer(ctx, 2*time.Second)
		graceSelector := workflow.NewSelector(ctx)
		graceSelector.AddFuture(future, func(f workflow.Future) {
			_ = f.Get(ctx, &result)
		})
		graceSelector.AddFuture(grace, func(workflow.Future) {})
		graceSelector.Select(ctx)
		outcome = OutcomeTimedOut
	})
	selector.Select(ctx)

	// ===== STEP 7-8: FINALIZE =====
	finalizeCtx := workflow.WithActivityOptions(ctx, shortOpts)
	return workflow.ExecuteActivity(finalizeCtx, a.FinalizeActivity, FinalizeInput{
		ExecutionID:    executionID,
		TaskID:         req.Task.ID,
		Strategy:       string(selection.Strategy),
		Outcome:        outcome,
		StrategyResult: result,
	}).Get(ctx, nil)
}
