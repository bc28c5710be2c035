package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/forgeai/orchestrator/internal/task"
)

// FinalizeInput is everything spec §4.9 step 7 commits atomically: the execution's
// terminal status, the ChangeSet on success, the task's terminal status, and the
// OutboxMessage to publish.
type FinalizeInput struct {
	// EventID is the id embedded in EventPayload's envelope. Left empty, Finalize
	// generates one, so callers that don't construct an envelope (most tests) still get
	// a valid outbox row.
	EventID         string
	ExecutionID     int64
	ExecutionStatus task.ExecutionStatus
	IterationsUsed  int
	TokensUsed      int
	CostUSD         float64
	FailureReason   string

	TaskID             int64
	ExpectedTaskStatus task.Status // the task's current status; the task update is a CAS guarded by it
	TaskStatus         task.Status
	ChangeSet          *task.ChangeSet // nil unless ExecutionStatus == Succeeded
	EventKind          task.EventKind
	EventPayload       []byte
}

// Finalize commits the execution's terminal state, the change set (if any), the task's
// terminal transition, and the outbox row in a single transaction — spec §4.9 step 7's
// exactly-once terminal outcome / outbox co-commit invariant, and spec §8's "for all
// tasks that reach a terminal status, exactly one OutboxMessage exists".
func (s *Store) Finalize(in FinalizeInput) error {
	if !in.ExecutionStatus.IsTerminal() {
		return fmt.Errorf("store: finalize requires a terminal execution status, got %q", in.ExecutionStatus)
	}
	if !in.TaskStatus.IsTerminal() {
		return fmt.Errorf("store: finalize requires a terminal task status, got %q", in.TaskStatus)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin finalize tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE executions SET status = ?, finished_at = datetime('now'), iterations_used = ?,
		 tokens_used = ?, cost_usd = ?, failure_reason = ? WHERE id = ?`,
		string(in.ExecutionStatus), in.IterationsUsed, in.TokensUsed, in.CostUSD, in.FailureReason, in.ExecutionID,
	); err != nil {
		return fmt.Errorf("store: finalize execution: %w", err)
	}

	if in.ChangeSet != nil {
		if err := insertChangeSet(tx, in.ExecutionID, *in.ChangeSet); err != nil {
			return err
		}
	}

	res, err := tx.Exec(
		`UPDATE tasks SET status = ?, completed_at = datetime('now'), updated_at = datetime('now')
		 WHERE id = ? AND status = ?`,
		string(in.TaskStatus), in.TaskID, string(in.ExpectedTaskStatus),
	)
	if err != nil {
		return fmt.Errorf("store: finalize task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: finalize task rows affected: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("store: finalize task %d: expected status %q, lost the race to a concurrent finalize", in.TaskID, in.ExpectedTaskStatus)
	}

	eventID := in.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	if _, err := tx.Exec(
		`INSERT INTO outbox_messages (event_id, task_id, kind, payload) VALUES (?, ?, ?, ?)`,
		eventID, in.TaskID, string(in.EventKind), in.EventPayload,
	); err != nil {
		return fmt.Errorf("store: insert outbox message: %w", err)
	}

	return tx.Commit()
}

func insertChangeSet(tx *sql.Tx, executionID int64, cs task.ChangeSet) error {
	filesChanged, linesAdded, linesRemoved := task.Metrics(cs.Changes)

	res, err := tx.Exec(
		`INSERT INTO change_sets (execution_id, files_changed, lines_added, lines_removed) VALUES (?, ?, ?, ?)`,
		executionID, filesChanged, linesAdded, linesRemoved,
	)
	if err != nil {
		return fmt.Errorf("store: insert change set: %w", err)
	}
	changeSetID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: change set last insert id: %w", err)
	}

	for _, c := range cs.Changes {
		if _, err := tx.Exec(
			`INSERT INTO file_changes (change_set_id, path, language, change_type, content) VALUES (?, ?, ?, ?, ?)`,
			changeSetID, c.Path, c.Language, string(c.ChangeType), c.Content,
		); err != nil {
			return fmt.Errorf("store: insert file change %s: %w", c.Path, err)
		}
	}
	return nil
}
