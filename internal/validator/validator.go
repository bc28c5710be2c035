// Package validator implements the Validator Adapter (spec §4.2): syntactic and compile
// checks on a change set, returning errors the next loop iteration can consume.
package validator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgeai/orchestrator/internal/task"
)

// Result is the outcome of validating a list of file changes.
type Result struct {
	OK     bool
	Errors []string
}

// Checker inspects a single FileChange and returns zero or more human-readable error
// strings. A Checker must be side-effect-free from the core's perspective and must
// respect ctx cancellation for anything that can block.
type Checker interface {
	Check(ctx context.Context, change task.FileChange) []string
}

// SetChecker inspects an entire change set at once (e.g. a compile/test run), rather
// than one file at a time. It only runs once the per-file checks all pass, since there
// is no point compiling a change set with malformed paths or invalid UTF-8.
type SetChecker interface {
	CheckAll(ctx context.Context, changes []task.FileChange) []string
}

// Adapter runs the required checks (path, UTF-8, per-language syntax) and any pluggable
// additional checks (compile, test) behind the same interface.
type Adapter struct {
	logger      *slog.Logger
	checkers    []Checker
	setCheckers []SetChecker
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithChecker appends an additional pluggable per-file checker.
func WithChecker(c Checker) Option {
	return func(a *Adapter) { a.checkers = append(a.checkers, c) }
}

// WithSetChecker appends an additional pluggable whole-changeset checker (e.g. a
// ContainerChecker running project-configured compile/test commands).
func WithSetChecker(c SetChecker) Option {
	return func(a *Adapter) { a.setCheckers = append(a.setCheckers, c) }
}

// New builds a Validator Adapter with the required checks wired in order: path, UTF-8,
// size, then syntax. Additional checkers passed via options run after those.
func New(logger *slog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		logger: logger,
		checkers: []Checker{
			pathChecker{},
			utf8Checker{},
			sizeChecker{},
			newSyntaxChecker(),
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Validate runs every configured checker over every change and aggregates errors.
// Deadline-aware: ctx cancellation aborts remaining checks and is surfaced as a single
// "validation cancelled" error rather than a partial, misleading result.
func (a *Adapter) Validate(ctx context.Context, changes []task.FileChange) Result {
	var errs []string

	if dupErrs := duplicatePathErrors(changes); len(dupErrs) > 0 {
		return Result{OK: false, Errors: dupErrs}
	}

	for _, change := range changes {
		select {
		case <-ctx.Done():
			return Result{OK: false, Errors: append(errs, fmt.Sprintf("validation cancelled: %v", ctx.Err()))}
		default:
		}

		for _, checker := range a.checkers {
			if fileErrs := checker.Check(ctx, change); len(fileErrs) > 0 {
				errs = append(errs, fileErrs...)
			}
		}
	}

	if len(errs) > 0 {
		return Result{OK: false, Errors: errs}
	}

	for _, sc := range a.setCheckers {
		select {
		case <-ctx.Done():
			return Result{OK: false, Errors: append(errs, fmt.Sprintf("validation cancelled: %v", ctx.Err()))}
		default:
		}
		if setErrs := sc.CheckAll(ctx, changes); len(setErrs) > 0 {
			errs = append(errs, setErrs...)
		}
	}

	return Result{OK: len(errs) == 0, Errors: errs}
}
