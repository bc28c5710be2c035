// Package intake implements the Intake Service (spec §4.12): the only writer of
// Pending task rows. It validates submissions, enforces client-token idempotence,
// and exposes a read path. No business logic beyond validation and persistence —
// classification, strategy selection and execution happen downstream in the executor.
package intake

import (
	"fmt"
	"strings"

	"github.com/forgeai/orchestrator/internal/store"
	"github.com/forgeai/orchestrator/internal/strategy"
	"github.com/forgeai/orchestrator/internal/task"
)

const maxDescriptionBytes = 32 * 1024 // spec §4.12: description <= 32 KiB

// ValidationError is returned for a submission that fails validation; callers map it
// to a 400 rather than a 500 at the HTTP surface.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intake: %s: %s", e.Field, e.Reason)
}

// Submission is the caller-supplied shape of a new task.
type Submission struct {
	UserID           string
	Title            string
	Description      string
	TypeHint         task.TypeHint
	OverrideStrategy string
	Priority         int
	ClientToken      string
}

// Dispatcher starts a newly submitted task's execution. Submit calls it once a new
// Pending row has been committed, handing the orchestration pipeline (L9) the task id
// without the Intake Service needing to know anything about Temporal.
type Dispatcher interface {
	Dispatch(taskID int64)
}

// Service validates and inserts tasks through the Task Store.
type Service struct {
	store      *store.Store
	dispatcher Dispatcher
}

// New constructs an Intake Service over the given store.
func New(st *store.Store) *Service {
	return &Service{store: st}
}

// SetDispatcher attaches the component that starts execution for newly submitted
// tasks. Left unset, Submit only persists the Pending row, which is the shape every
// existing test in this package exercises.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Submit validates sub and inserts a Pending task row, or returns the task-id of a
// prior submission made within the last 24h with the same client-token (spec §8
// submission idempotence law).
func (s *Service) Submit(sub Submission) (int64, error) {
	if err := validate(sub); err != nil {
		return 0, err
	}

	if sub.ClientToken != "" {
		if id, found, err := s.store.TaskByClientToken(sub.ClientToken); err != nil {
			return 0, fmt.Errorf("intake: check client token: %w", err)
		} else if found {
			return id, nil
		}
	}

	id, err := s.store.InsertTask(task.Task{
		UserID:           sub.UserID,
		Title:            sub.Title,
		Description:      sub.Description,
		TypeHint:         sub.TypeHint,
		OverrideStrategy: sub.OverrideStrategy,
		Priority:         sub.Priority,
		ClientToken:      sub.ClientToken,
	})
	if err != nil {
		return 0, fmt.Errorf("intake: insert task: %w", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(id)
	}
	return id, nil
}

// Get returns the current state of a task by id, or nil if it does not exist.
func (s *Service) Get(taskID int64) (*task.Task, error) {
	t, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("intake: get task %d: %w", taskID, err)
	}
	return t, nil
}

// Cancel requests cancellation of a task. It performs a CAS from the task's current
// status to Cancelled, which the state machine allows only from Executing. It changes
// the stored status only: the running workflow and its strategy are not signalled.
// Cancelling a task that is not Executing (already terminal, or still Classifying) is
// rejected rather than silently accepted.
func (s *Service) Cancel(taskID int64) error {
	t, err := s.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("intake: get task %d: %w", taskID, err)
	}
	if t == nil {
		return &ValidationError{Field: "task_id", Reason: "not found"}
	}
	if t.Status.IsTerminal() {
		return &ValidationError{Field: "task_id", Reason: "task already in a terminal state"}
	}
	ok, err := s.store.CASTaskStatus(taskID, t.Status, task.StatusCancelled)
	if err != nil {
		return fmt.Errorf("intake: cancel task %d: %w", taskID, err)
	}
	if !ok {
		return &ValidationError{Field: "task_id", Reason: "task status changed concurrently, retry"}
	}
	return nil
}

func validate(sub Submission) error {
	if strings.TrimSpace(sub.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(sub.Description) > maxDescriptionBytes {
		return &ValidationError{Field: "description", Reason: "exceeds 32 KiB"}
	}
	if sub.OverrideStrategy != "" && !strategy.IsKnownStrategy(sub.OverrideStrategy) {
		return &ValidationError{Field: "override_strategy", Reason: "not a known strategy"}
	}
	if sub.Priority < 0 || sub.Priority > 3 {
		return &ValidationError{Field: "priority", Reason: "must be between 0 and 3"}
	}
	return nil
}
