// Package task defines the core domain model driven by the orchestration core: Task,
// Execution, ChangeSet, FileChange, IterationRecord and OutboxMessage, along with the
// status state machine each follows.
package task

import "time"

// Status is a Task's lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusClassifying Status = "classifying"
	StatusExecuting   Status = "executing"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusTimedOut    Status = "timed_out"
)

// IsTerminal reports whether a status has no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// validTransitions enumerates the monotone edges of the task state machine (spec §4.9).
var validTransitions = map[Status][]Status{
	StatusPending:     {StatusClassifying},
	StatusClassifying: {StatusExecuting, StatusFailed},
	StatusExecuting:   {StatusSucceeded, StatusFailed, StatusCancelled, StatusTimedOut},
}

// CanTransition reports whether from->to is a legal edge in the task state machine.
func CanTransition(from, to Status) bool {
	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ClassificationSource records how a task's complexity was determined.
type ClassificationSource string

const (
	SourceML        ClassificationSource = "ml"
	SourceHeuristic ClassificationSource = "heuristic"
	SourceOverride  ClassificationSource = "override"
)

// Complexity is the classification band driving strategy selection.
type Complexity string

const (
	ComplexitySimple  Complexity = "Simple"
	ComplexityMedium  Complexity = "Medium"
	ComplexityComplex Complexity = "Complex"
	ComplexityEpic    Complexity = "Epic"
)

// TypeHint is the caller-supplied or inferred task category.
type TypeHint string

const (
	TypeBugFix   TypeHint = "bug-fix"
	TypeFeature  TypeHint = "feature"
	TypeRefactor TypeHint = "refactor"
	TypeOther    TypeHint = "other"
)

// Classification is set exactly once when a task leaves StatusClassifying.
type Classification struct {
	Type       TypeHint
	Complexity Complexity
	Confidence float64
	Source     ClassificationSource
}

// Task is an intent to change code.
type Task struct {
	ID                int64
	UserID            string
	Title             string
	Description       string
	TypeHint          TypeHint
	OverrideStrategy  string
	Priority          int
	ClientToken       string
	Status            Status
	Classification    Classification
	CreatedAt         time.Time
	UpdatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

// ExecutionStatus is an Execution's lifecycle state.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionTimedOut  ExecutionStatus = "timed_out"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether an execution status has no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s != ExecutionRunning
}

// Execution is a single attempt at carrying out a task using a chosen strategy.
type Execution struct {
	ID             int64
	TaskID         int64
	Strategy       string
	Status         ExecutionStatus
	StartedAt      time.Time
	FinishedAt     *time.Time
	IterationsUsed int
	TokensUsed     int
	CostUSD        float64
	FailureReason  string
}

// ChangeType is the kind of modification a FileChange represents.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
)

// FileChange is a single file modification parsed from LLM output.
type FileChange struct {
	Path       string
	Language   string // empty string means "unknown"
	ChangeType ChangeType
	Content    string
}

// ChangeSet is the artifact produced by a successful execution.
type ChangeSet struct {
	ID           int64
	ExecutionID  int64
	Changes      []FileChange
	FilesChanged int
	LinesAdded   int
	LinesRemoved int
}

// Metrics computes the counted metrics for a list of changes.
func Metrics(changes []FileChange) (filesChanged, linesAdded, linesRemoved int) {
	filesChanged = len(changes)
	for _, c := range changes {
		if c.ChangeType == ChangeDelete {
			linesRemoved += lineCount(c.Content)
			continue
		}
		linesAdded += lineCount(c.Content)
	}
	return filesChanged, linesAdded, linesRemoved
}

func lineCount(content string) int {
	if content == "" {
		return 0
	}
	n := 1
	for _, r := range content {
		if r == '\n' {
			n++
		}
	}
	return n
}

// IterationRecord is a per-iteration diagnostic recorded by Iterative and MultiAgent
// strategies.
type IterationRecord struct {
	ID                int64
	ExecutionID       int64
	Index             int
	PromptLength      int
	TokensUsed        int
	CostUSD           float64
	ValidationErrors  int
	Duration          time.Duration
}

// EventKind is the kind of domain event emitted on a task's terminal transition.
type EventKind string

const (
	EventTaskSucceeded EventKind = "TaskSucceeded"
	EventTaskFailed    EventKind = "TaskFailed"
	EventTaskTimedOut  EventKind = "TaskTimedOut"
	EventTaskCancelled EventKind = "TaskCancelled"
)

// OutboxMessage is a pending domain event co-committed with a task's terminal state.
type OutboxMessage struct {
	ID          int64
	EventID     string
	TaskID      int64
	Kind        EventKind
	Payload     []byte // canonical JSON
	CreatedAt   time.Time
	DeliveredAt *time.Time
	Attempts    int
}
