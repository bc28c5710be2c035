package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"golang.org/x/sync/semaphore"

	"github.com/forgeai/orchestrator/internal/classifier"
	"github.com/forgeai/orchestrator/internal/metrics"
	"github.com/forgeai/orchestrator/internal/store"
	"github.com/forgeai/orchestrator/internal/strategy"
	"github.com/forgeai/orchestrator/internal/task"
)

// Activities holds the dependencies every Temporal activity needs: the store for
// persistence, the classifier for L4, and the strategy Deps (LLM adapter, change
// parser, validator) the strategies themselves close over. Pool gates concurrent
// RunStrategyActivity executions in this process to spec §6's worker-pool-size,
// independent of Temporal's own per-worker activity concurrency. Metrics is optional;
// a nil Recorder disables instrumentation (used in unit tests).
type Activities struct {
	Store      *store.Store
	Classifier *classifier.Classifier
	Strategy   strategy.Deps
	Pool       *semaphore.Weighted
	Metrics    *metrics.Recorder
}

// BeginClassifyingActivity performs lifecycle step 1 (spec §4.9): the Pending ->
// Classifying CAS that makes picking up a task for execution exclusive. A task that
// fails this CAS is already being worked by another run (or was cancelled out from
// under us) and the workflow must not proceed.
func (a *Activities) BeginClassifyingActivity(ctx context.Context, taskID int64) error {
	ok, err := a.Store.CASTaskStatus(taskID, task.StatusPending, task.StatusClassifying)
	if err != nil {
		return fmt.Errorf("executor: begin classifying: %w", err)
	}
	if !ok {
		return fmt.Errorf("executor: task %d is not Pending, cannot begin classifying", taskID)
	}
	return nil
}

// ClassifyInput is ClassifyActivity's argument.
type ClassifyInput struct {
	TaskID      int64
	Title       string
	Description string
	TypeHint    string
}

// ClassifyActivity runs the Classifier Adapter and persists the result, implementing
// lifecycle step 2 (spec §4.9).
func (a *Activities) ClassifyActivity(ctx context.Context, in ClassifyInput) (task.Classification, error) {
	start := time.Now()
	cls := a.Classifier.Classify(ctx, classifier.Input{
		TaskID:      fmt.Sprintf("%d", in.TaskID),
		Title:       in.Title,
		Description: in.Description,
		TypeHint:    in.TypeHint,
	})
	if a.Metrics != nil {
		a.Metrics.ClassifyDuration(ctx, time.Since(start).Seconds())
	}
	if err := a.Store.SetClassification(in.TaskID, cls); err != nil {
		return task.Classification{}, fmt.Errorf("executor: persist classification: %w", err)
	}
	return cls, nil
}

// BeginExecutionInput is BeginExecutionActivity's argument.
type BeginExecutionInput struct {
	TaskID   int64
	Strategy string
}

// BeginExecutionActivity creates the Execution row and transitions the task to
// Executing, both atomically (lifecycle step 4).
func (a *Activities) BeginExecutionActivity(ctx context.Context, in BeginExecutionInput) (int64, error) {
	return a.Store.BeginExecution(in.TaskID, in.Strategy)
}

// RunStrategyInput is RunStrategyActivity's argument. It carries the execution input
// as plain data since Temporal activities must be JSON-marshalable.
type RunStrategyInput struct {
	ExecutionID   int64
	StrategyName  strategy.Name
	Task          task.Task
	ModelID       string
	RelevantFiles []strategy.ContextFile
}

// RunStrategyActivity invokes the selected strategy's control loop (lifecycle step 5-6),
// persisting its IterationRecords once the strategy returns. A periodic heartbeat keeps Temporal aware the
// activity is alive during long iterative/multi-agent runs; Temporal's own
// StartToCloseTimeout enforces the per-activity budget while the strategy enforces its
// own tighter wall-clock cap internally.
func (a *Activities) RunStrategyActivity(ctx context.Context, in RunStrategyInput) (strategy.Result, error) {
	if a.Pool != nil {
		if err := a.Pool.Acquire(ctx, 1); err != nil {
			return strategy.Result{}, fmt.Errorf("executor: acquire worker pool slot: %w", err)
		}
		defer a.Pool.Release(1)
	}
	activity.RecordHeartbeat(ctx, "running")
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, "running")
			}
		}
	}()
	s := strategy.New(in.StrategyName, a.Strategy)
	result := s.Execute(ctx, strategy.ExecutionInput{
		Task:          in.Task,
		ModelID:       in.ModelID,
		RelevantFiles: in.RelevantFiles,
	})
	for _, rec := range result.Iterations {
		if err := a.Store.RecordIteration(in.ExecutionID, rec); err != nil {
			activity.GetLogger(ctx).Warn("failed to persist iteration record", "error", err)
		}
	}
	return result, nil
}

// Outcome is the terminal disposition a workflow reaches, independent of whether the
// strategy itself reports success (a strategy success can still be overridden to
// TimedOut or Cancelled by the workflow's own deadline/cancellation handling).
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCancelled Outcome = "cancelled"
)

// FinalizeInput is FinalizeActivity's argument.
type FinalizeInput struct {
	ExecutionID    int64
	TaskID         int64
	Strategy       string
	Outcome        Outcome
	StrategyResult strategy.Result
}

// FinalizeActivity commits the terminal execution/task state and outbox row in one
// transaction (lifecycle step 7), implementing the exactly-once outbox invariant.
func (a *Activities) FinalizeActivity(ctx context.Context, in FinalizeInput) error {
	var execStatus task.ExecutionStatus
	var taskStatus task.Status
	var kind task.EventKind
	var cs *task.ChangeSet

	switch in.Outcome {
	case OutcomeSucceeded:
		execStatus, taskStatus, kind = task.ExecutionSucceeded, task.StatusSucceeded, task.EventTaskSucceeded
		cs = &task.ChangeSet{ExecutionID: in.ExecutionID, Changes: in.StrategyResult.Changes}
	case OutcomeTimedOut:
		execStatus, taskStatus, kind = task.ExecutionTimedOut, task.StatusTimedOut, task.EventTaskTimedOut
	case OutcomeCancelled:
		execStatus, taskStatus, kind = task.ExecutionCancelled, task.StatusCancelled, task.EventTaskCancelled
	default:
		execStatus, taskStatus, kind = task.ExecutionFailed, task.StatusFailed, task.EventTaskFailed
	}

	eventID := uuid.NewString()
	payload, err := eventPayload(eventID, in.TaskID, in.ExecutionID, in.Strategy, kind, in.StrategyResult)
	if err != nil {
		return fmt.Errorf("executor: marshal event payload: %w", err)
	}

	if a.Metrics != nil {
		a.Metrics.TaskFinalized(ctx, string(in.Outcome), len(in.StrategyResult.Iterations),
			in.StrategyResult.TokensUsed, in.StrategyResult.CostUSD)
	}

	return a.Store.Finalize(store.FinalizeInput{
		EventID:            eventID,
		ExecutionID:        in.ExecutionID,
		ExecutionStatus:    execStatus,
		IterationsUsed:     len(in.StrategyResult.Iterations),
		TokensUsed:         in.StrategyResult.TokensUsed,
		CostUSD:            in.StrategyResult.CostUSD,
		FailureReason:      in.StrategyResult.Reason,
		TaskID:             in.TaskID,
		ExpectedTaskStatus: task.StatusExecuting,
		TaskStatus:         taskStatus,
		ChangeSet:          cs,
		EventKind:          kind,
		EventPayload:       payload,
	})
}
