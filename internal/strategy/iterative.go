package strategy

import (
	"context"
	"time"

	"github.com/forgeai/orchestrator/internal/llmadapter"
	"github.com/forgeai/orchestrator/internal/task"
)

const (
	iterativeMaxIterations = 3
	iterativeWallClock     = 60 * time.Second
)

// IterativeStrategy is intended for Medium tasks (spec §4.6): a bounded loop of up to
// 3 iterations, capped at 60s wall-clock, feeding validation errors back into the next
// prompt until the changes pass or the budget is exhausted.
type IterativeStrategy struct {
	Deps Deps
}

func (s *IterativeStrategy) Name() Name { return Iterative }

func (s *IterativeStrategy) Execute(ctx context.Context, in ExecutionInput) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, iterativeWallClock)
	defer cancel()

	var (
		errs       []string
		iterations []task.IterationRecord
		totalTok   int
		totalCost  float64
	)

	for i := 0; i < iterativeMaxIterations; i++ {
		iterStart := time.Now()

		messages := buildMessages(in.Task, in.RelevantFiles, errs)
		resp, changes, err := generate(ctx, s.Deps, in.ModelID, messages)
		if err != nil {
			result := failureFromErr(ctx, err, start)
			result.Iterations = iterations
			result.TokensUsed = totalTok
			result.CostUSD = totalCost
			return result
		}

		totalTok += resp.TokensPrompt + resp.TokensCompletion
		totalCost += resp.CostUSD

		if len(changes) == 0 {
			iterations = append(iterations, task.IterationRecord{
				Index:            i,
				PromptLength:     promptLength(messages),
				TokensUsed:       resp.TokensPrompt + resp.TokensCompletion,
				CostUSD:          resp.CostUSD,
				ValidationErrors: 0,
				Duration:         time.Since(iterStart),
			})
			return Result{
				Succeeded:  false,
				Reason:     "no parseable changes",
				Iterations: iterations,
				TokensUsed: totalTok,
				CostUSD:    totalCost,
				Duration:   time.Since(start),
			}
		}

		vr := s.Deps.Validator.Validate(ctx, changes)
		iterations = append(iterations, task.IterationRecord{
			Index:            i,
			PromptLength:     promptLength(messages),
			TokensUsed:       resp.TokensPrompt + resp.TokensCompletion,
			CostUSD:          resp.CostUSD,
			ValidationErrors: len(vr.Errors),
			Duration:         time.Since(iterStart),
		})

		if vr.OK {
			return Result{
				Succeeded:  true,
				Changes:    changes,
				Iterations: iterations,
				TokensUsed: totalTok,
				CostUSD:    totalCost,
				Duration:   time.Since(start),
			}
		}
		errs = vr.Errors
	}

	return Result{
		Succeeded:  false,
		Reason:     "max iterations exceeded",
		Errors:     errs,
		Iterations: iterations,
		TokensUsed: totalTok,
		CostUSD:    totalCost,
		Duration:   time.Since(start),
	}
}

func promptLength(messages []llmadapter.Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n
}
