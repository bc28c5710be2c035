// Package errs classifies errors into the orchestration core's error taxonomy: input,
// transient-upstream, fatal-upstream, validation, deadline, and persistence. Adapters and
// the executor use this classification to decide whether an iteration-level error should
// be retried, fed back as validator feedback, or turned into a terminal task failure.
//
// Grounded on the pack's transparency.ClassifyError pattern-matching classifier, adapted
// from its user-guidance categories to this core's propagation-policy categories.
package errs

import (
	"context"
	"errors"
	"strings"
)

// Category is one branch of the error taxonomy.
type Category int

const (
	// CategoryUnknown is the fallback for errors that don't match a known pattern.
	CategoryUnknown Category = iota
	// CategoryInput marks a submission rejected at intake; never produces an execution.
	CategoryInput
	// CategoryTransientUpstream marks an LLM rate-limit, 5xx, or classifier timeout:
	// retryable at the adapter level, otherwise surfaces as an iteration-level error.
	CategoryTransientUpstream
	// CategoryFatalUpstream marks an auth failure or bad request to an LLM: fails the
	// current execution immediately.
	CategoryFatalUpstream
	// CategoryValidation marks a validator-reported failure: fed back to the next
	// iteration in Iterative/MultiAgent, fails SingleShot outright.
	CategoryValidation
	// CategoryDeadline marks a deadline or cancellation: task becomes TimedOut/Cancelled.
	CategoryDeadline
	// CategoryPersistence marks a storage transaction abort: safe to retry, since
	// terminal transitions are atomic.
	CategoryPersistence
)

func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryTransientUpstream:
		return "transient-upstream"
	case CategoryFatalUpstream:
		return "fatal-upstream"
	case CategoryValidation:
		return "validation"
	case CategoryDeadline:
		return "deadline"
	case CategoryPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Retryable reports whether the category is one an adapter-level retry loop should act
// on rather than surface straight to the strategy as a terminal iteration failure.
func (c Category) Retryable() bool {
	return c == CategoryTransientUpstream || c == CategoryPersistence
}

// Classified wraps an error with its taxonomy category, preserving the original error
// for errors.Is/As.
type Classified struct {
	Original error
	Category Category
}

func (c *Classified) Error() string {
	return c.Category.String() + ": " + c.Original.Error()
}

func (c *Classified) Unwrap() error {
	return c.Original
}

// Classify inspects err and returns a Classified wrapping it. ctx is consulted first so
// a cancelled or deadline-exceeded context always classifies as CategoryDeadline
// regardless of what the error text says.
func Classify(ctx context.Context, err error) *Classified {
	if err == nil {
		return nil
	}
	if ctx != nil && ctx.Err() != nil {
		return &Classified{Original: err, Category: CategoryDeadline}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Classified{Original: err, Category: CategoryDeadline}
	}

	var v *ValidationFailure
	if errors.As(err, &v) {
		return &Classified{Original: err, Category: CategoryValidation}
	}

	text := strings.ToLower(err.Error())
	switch {
	case containsAny(text, "rate limit", "429", "503", "502", "504", "overloaded", "timeout", "temporarily unavailable"):
		return &Classified{Original: err, Category: CategoryTransientUpstream}
	case containsAny(text, "unauthorized", "401", "403", "invalid api key", "bad request", "400"):
		return &Classified{Original: err, Category: CategoryFatalUpstream}
	case containsAny(text, "transaction", "constraint", "database is locked", "sqlite", "deadlock"):
		return &Classified{Original: err, Category: CategoryPersistence}
	default:
		return &Classified{Original: err, Category: CategoryUnknown}
	}
}

// ValidationFailure marks an error as originating from the Validator Adapter, so
// Classify can route it to CategoryValidation without pattern-matching on text.
type ValidationFailure struct {
	Errors []string
}

func (v *ValidationFailure) Error() string {
	return "validation failed: " + strings.Join(v.Errors, "; ")
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
