package strategy

import (
	"context"
	"time"

	"github.com/forgeai/orchestrator/internal/errs"
)

// SingleShotStrategy is intended for Simple tasks (spec §4.5): one LLM call, one
// validation, no retry within the strategy.
type SingleShotStrategy struct {
	Deps Deps
}

func (s *SingleShotStrategy) Name() Name { return SingleShot }

func (s *SingleShotStrategy) Execute(ctx context.Context, in ExecutionInput) Result {
	start := time.Now()

	messages := buildMessages(in.Task, in.RelevantFiles, nil)
	resp, changes, err := generate(ctx, s.Deps, in.ModelID, messages)
	if err != nil {
		return failureFromErr(ctx, err, start)
	}

	if len(changes) == 0 {
		return Result{
			Succeeded:  false,
			Reason:     "no parseable changes",
			TokensUsed: resp.TokensPrompt + resp.TokensCompletion,
			CostUSD:    resp.CostUSD,
			Duration:   time.Since(start),
		}
	}

	vr := s.Deps.Validator.Validate(ctx, changes)
	if !vr.OK {
		return Result{
			Succeeded:  false,
			Reason:     "validation failed",
			Errors:     vr.Errors,
			TokensUsed: resp.TokensPrompt + resp.TokensCompletion,
			CostUSD:    resp.CostUSD,
			Duration:   time.Since(start),
		}
	}

	return Result{
		Succeeded:  true,
		Changes:    changes,
		TokensUsed: resp.TokensPrompt + resp.TokensCompletion,
		CostUSD:    resp.CostUSD,
		Duration:   time.Since(start),
	}
}

// failureFromErr maps an LLM adapter error into a Result, routing it through the shared
// error taxonomy (internal/errs) so the executor's task-level disposition is driven by a
// stable category rather than by parsing the reason string itself.
func failureFromErr(ctx context.Context, err error, start time.Time) Result {
	classified := errs.Classify(ctx, err)
	return Result{
		Succeeded: false,
		Reason:    classified.Category.String(),
		Errors:    []string{err.Error()},
		Duration:  time.Since(start),
	}
}
