package task

import "time"

// SchemaVersion is the current event schema version for all emitted events.
const SchemaVersion = 1

// EventEnvelope wraps every emitted event with the fields common to all kinds (spec §6).
type EventEnvelope struct {
	EventID       string    `json:"event_id"`
	SchemaVersion int       `json:"schema_version"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// TaskSucceededPayload is the body of a TaskSucceeded event.
type TaskSucceededPayload struct {
	EventEnvelope
	TaskID       int64   `json:"task_id"`
	ExecutionID  int64   `json:"execution_id"`
	Strategy     string  `json:"strategy"`
	Iterations   int     `json:"iterations"`
	Tokens       int     `json:"tokens"`
	CostUSD      float64 `json:"cost_usd"`
	FilesChanged int     `json:"files_changed"`
	LinesAdded   int     `json:"lines_added"`
	LinesRemoved int     `json:"lines_removed"`
	ChangeSetID  int64   `json:"changeset_id"`
}

// TaskFailedPayload is the body of a TaskFailed event.
type TaskFailedPayload struct {
	EventEnvelope
	TaskID      int64    `json:"task_id"`
	ExecutionID int64    `json:"execution_id"`
	Strategy    string   `json:"strategy"`
	Iterations  int      `json:"iterations"`
	Tokens      int      `json:"tokens"`
	CostUSD     float64  `json:"cost_usd"`
	Reason      string   `json:"reason"`
	Errors      []string `json:"errors"`
}

// TaskTimedOutPayload is the body of a TaskTimedOut event.
type TaskTimedOutPayload struct {
	EventEnvelope
	TaskID      int64  `json:"task_id"`
	ExecutionID *int64 `json:"execution_id,omitempty"`
	ElapsedMS   int64  `json:"elapsed_ms"`
}

// TaskCancelledPayload is the body of a TaskCancelled event.
type TaskCancelledPayload struct {
	EventEnvelope
	TaskID      int64  `json:"task_id"`
	ExecutionID *int64 `json:"execution_id,omitempty"`
}
