package executor

import (
	"encoding/json"
	"time"

	"github.com/forgeai/orchestrator/internal/strategy"
	"github.com/forgeai/orchestrator/internal/task"
)

// eventPayload builds the canonical JSON body for an OutboxMessage, wrapping the
// outcome in the schema-versioned envelope every emitted event carries (spec §6).
func eventPayload(eventID string, taskID, executionID int64, strategyName string, kind task.EventKind, result strategy.Result) ([]byte, error) {
	envelope := task.EventEnvelope{
		EventID:       eventID,
		SchemaVersion: task.SchemaVersion,
		OccurredAt:    time.Now().UTC(),
	}
	filesChanged, linesAdded, linesRemoved := task.Metrics(result.Changes)

	var body any
	switch kind {
	case task.EventTaskSucceeded:
		body = task.TaskSucceededPayload{
			EventEnvelope: envelope,
			TaskID:        taskID,
			ExecutionID:   executionID,
			Strategy:      strategyName,
			Iterations:    len(result.Iterations),
			Tokens:        result.TokensUsed,
			CostUSD:       result.CostUSD,
			FilesChanged:  filesChanged,
			LinesAdded:    linesAdded,
			LinesRemoved:  linesRemoved,
		}
	case task.EventTaskFailed:
		body = task.TaskFailedPayload{
			EventEnvelope: envelope,
			TaskID:        taskID,
			ExecutionID:   executionID,
			Strategy:      strategyName,
			Iterations:    len(result.Iterations),
			Tokens:        result.TokensUsed,
			CostUSD:       result.CostUSD,
			Reason:        result.Reason,
			Errors:        result.Errors,
		}
	case task.EventTaskTimedOut:
		body = task.TaskTimedOutPayload{
			EventEnvelope: envelope,
			TaskID:        taskID,
			ExecutionID:   &executionID,
			ElapsedMS:     result.Duration.Milliseconds(),
		}
	case task.EventTaskCancelled:
		body = task.TaskCancelledPayload{
			EventEnvelope: envelope,
			TaskID:        taskID,
			ExecutionID:   &executionID,
		}
	default:
		body = envelope
	}

	return json.Marshal(body)
}
