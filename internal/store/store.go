// Package store implements the Task Store (spec §4.10): CRUD for Task, Execution,
// ChangeSet, IterationRecord and OutboxMessage, plus the compare-and-set and
// single-transaction finalize helpers the executor's lifecycle depends on.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forgeai/orchestrator/internal/task"
)

// Store provides SQLite-backed persistence for the orchestration core, grounded
// directly in the teacher's internal/store.Store (same driver, same WAL pragma idiom).
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at dbPath and ensures the schema exists,
// mirroring the teacher's store.Open.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for callers (e.g. the reaper) that need raw access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InsertTask inserts a new task in Pending status, implementing the Intake Service's
// only write path (spec §4.12).
func (s *Store) InsertTask(t task.Task) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO tasks (user_id, title, description, type_hint, override_strategy, priority, client_token, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Title, t.Description, string(t.TypeHint), t.OverrideStrategy, t.Priority, t.ClientToken, string(task.StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert task: %w", err)
	}
	return res.LastInsertId()
}

// TaskByClientToken looks up a task by its idempotency token within the last 24h (spec
// §8: "duplicate submissions within 24h with the same token return the same task-id").
func (s *Store) TaskByClientToken(clientToken string) (int64, bool, error) {
	if clientToken == "" {
		return 0, false, nil
	}
	var id int64
	err := s.db.QueryRow(
		`SELECT id FROM tasks WHERE client_token = ? AND created_at >= datetime('now', '-24 hours')`,
		clientToken,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: lookup client token: %w", err)
	}
	return id, true, nil
}

// GetTask loads a task by id, returning the authoritative current state (spec §7:
// "GetTask always returns the authoritative current state").
func (s *Store) GetTask(id int64) (*task.Task, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, title, description, type_hint, override_strategy, priority, client_token, status,
		        classification_type, classification_complexity, classification_confidence, classification_source,
		        created_at, updated_at, started_at, completed_at
		 FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func scanTask(row *sql.Row) (*task.Task, error) {
	var t task.Task
	var typeHint, overrideStrategy, status, clsType, clsComplexity, clsSource string
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &typeHint, &overrideStrategy, &t.Priority, &t.ClientToken, &status,
		&clsType, &clsComplexity, &t.Classification.Confidence, &clsSource,
		&t.CreatedAt, &t.UpdatedAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan task: %w", err)
	}

	t.TypeHint = task.TypeHint(typeHint)
	t.OverrideStrategy = overrideStrategy
	t.Status = task.Status(status)
	t.Classification.Type = task.TypeHint(clsType)
	t.Classification.Complexity = task.Complexity(clsComplexity)
	t.Classification.Source = task.ClassificationSource(clsSource)
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

// CASTaskStatus is the compare-and-set helper spec §4.9 step 1 relies on: a single
// conditional UPDATE checked against RowsAffected, exactly the idiom the teacher's
// transaction style (explicit commit, checked result) already supports.
func (s *Store) CASTaskStatus(id int64, expected, next task.Status) (bool, error) {
	if !task.CanTransition(expected, next) {
		return false, fmt.Errorf("store: illegal transition %s -> %s", expected, next)
	}
	res, err := s.db.Exec(
		`UPDATE tasks SET status = ?, updated_at = datetime('now') WHERE id = ? AND status = ?`,
		string(next), id, string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("store: cas task status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: cas task status rows affected: %w", err)
	}
	return rows == 1, nil
}

// SetClassification records a task's classification exactly once (spec §3 invariant).
func (s *Store) SetClassification(id int64, c task.Classification) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET classification_type = ?, classification_complexity = ?,
		 classification_confidence = ?, classification_source = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		string(c.Type), string(c.Complexity), c.Confidence, string(c.Source), id,
	)
	if err != nil {
		return fmt.Errorf("store: set classification: %w", err)
	}
	return nil
}

// BeginExecution atomically creates the Execution row in Running state and transitions
// the task to Executing, both in one transaction (spec §4.9 step 4).
func (s *Store) BeginExecution(taskID int64, strategy string) (executionID int64, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin execution tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE tasks SET status = ?, started_at = datetime('now'), updated_at = datetime('now')
		 WHERE id = ? AND status = ?`,
		string(task.StatusExecuting), taskID, string(task.StatusClassifying),
	)
	if err != nil {
		return 0, fmt.Errorf("store: transition task to executing: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: transition rows affected: %w", err)
	}
	if rows != 1 {
		return 0, fmt.Errorf("store: task %d is not in Classifying, cannot begin execution", taskID)
	}

	execRes, err := tx.Exec(
		`INSERT INTO executions (task_id, strategy, status) VALUES (?, ?, ?)`,
		taskID, strategy, string(task.ExecutionRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert execution: %w", err)
	}
	executionID, err = execRes.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: execution last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit begin execution: %w", err)
	}
	return executionID, nil
}

// RecordIteration inserts one IterationRecord, used by Iterative/MultiAgent as each
// loop iteration completes.
func (s *Store) RecordIteration(executionID int64, rec task.IterationRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO iteration_records (execution_id, idx, prompt_length, tokens_used, cost_usd, validation_errors, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		executionID, rec.Index, rec.PromptLength, rec.TokensUsed, rec.CostUSD, rec.ValidationErrors, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("store: record iteration: %w", err)
	}
	return nil
}

// IterationsFor returns every IterationRecord for an execution, ordered by index.
func (s *Store) IterationsFor(executionID int64) ([]task.IterationRecord, error) {
	rows, err := s.db.Query(
		`SELECT idx, prompt_length, tokens_used, cost_usd, validation_errors, duration_ms
		 FROM iteration_records WHERE execution_id = ? ORDER BY idx`, executionID)
	if err != nil {
		return nil, fmt.Errorf("store: query iterations: %w", err)
	}
	defer rows.Close()

	var out []task.IterationRecord
	for rows.Next() {
		var rec task.IterationRecord
		var durationMs int64
		if err := rows.Scan(&rec.Index, &rec.PromptLength, &rec.TokensUsed, &rec.CostUSD, &rec.ValidationErrors, &durationMs); err != nil {
			return nil, fmt.Errorf("store: scan iteration: %w", err)
		}
		rec.ExecutionID = executionID
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RunningExecutionID returns the id of a task's currently-running execution, if any.
// Used by the reaper to seal an abandoned task's execution in the same Finalize call
// that marks the task Failed.
func (s *Store) RunningExecutionID(taskID int64) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(
		`SELECT id FROM executions WHERE task_id = ? AND status = ?`,
		taskID, string(task.ExecutionRunning),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: lookup running execution for task %d: %w", taskID, err)
	}
	return id, true, nil
}

// StaleExecuting returns tasks in Classifying/Executing whose updated_at is older than
// the given staleness window, for the reaper's sweep (spec §7).
func (s *Store) StaleExecuting(staleFor time.Duration) ([]task.Task, error) {
	cutoffSeconds := int(staleFor.Seconds())
	rows, err := s.db.Query(
		`SELECT id FROM tasks WHERE status IN (?, ?) AND updated_at <= datetime('now', ? || ' seconds')`,
		string(task.StatusClassifying), string(task.StatusExecuting), -cutoffSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query stale tasks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan stale task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []task.Task
	for _, id := range ids {
		t, err := s.GetTask(id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			out = append(out, *t)
		}
	}
	return out, nil
}
