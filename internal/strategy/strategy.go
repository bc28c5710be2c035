// Package strategy implements the three execution strategies (SingleShot, Iterative,
// MultiAgent) and the pure Strategy Selector that picks among them (spec §4.5-§4.8).
package strategy

import (
	"context"
	"time"

	"github.com/forgeai/orchestrator/internal/changeparser"
	"github.com/forgeai/orchestrator/internal/llmadapter"
	"github.com/forgeai/orchestrator/internal/task"
	"github.com/forgeai/orchestrator/internal/validator"
)

// Name identifies a strategy (spec §4.8).
type Name string

const (
	SingleShot Name = "SingleShot"
	Iterative  Name = "Iterative"
	MultiAgent Name = "MultiAgent"
)

// ContextFile is one piece of relevant file context handed to the strategy (spec §4.9
// step 5's "prepared TaskExecutionContext").
type ContextFile struct {
	Path    string
	Content string
}

// ExecutionInput bundles everything a strategy's Execute needs: the task it is working
// on and the relevant file context assembled by the executor.
type ExecutionInput struct {
	Task          task.Task
	ModelID       string
	RelevantFiles []ContextFile
}

// Result is the uniform contract every strategy returns, directly implementing spec
// §7's StrategyExecutionResult: success or failure with reason + error list + totals.
// Strategies never panic; any internal error is folded into Succeeded=false.
type Result struct {
	Succeeded  bool
	Reason     string
	Errors     []string
	Changes    []task.FileChange
	Iterations []task.IterationRecord
	TokensUsed int
	CostUSD    float64
	Duration   time.Duration
}

// Strategy is the uniform contract shared by SingleShot, Iterative and MultiAgent (spec
// §9: "execute(task, context, deadline, cancel) -> StrategyExecutionResult").
type Strategy interface {
	Name() Name
	Execute(ctx context.Context, in ExecutionInput) Result
}

// Deps are the collaborators every strategy needs: the LLM adapter to generate content,
// the change parser to turn content into FileChanges, and the validator to check them.
type Deps struct {
	LLM       *llmadapter.Adapter
	Parser    *changeparser.Parser
	Validator *validator.Adapter
}

// buildMessages composes the deterministic prompt described in spec §4.5: a system
// message instructing the FILE:/fenced-block output format, then a user message with
// the task and, optionally, a validation-errors section and file context.
func buildMessages(t task.Task, files []ContextFile, validationErrors []string) []llmadapter.Message {
	system := llmadapter.Message{
		Role: llmadapter.RoleSystem,
		Content: "Output every file you change as:\n" +
			"FILE: <path>\n```<language>\n<content>\n```\n" +
			"Do not include any other commentary outside these blocks.",
	}

	user := "Task: " + t.Title + "\n" +
		"Description: " + t.Description + "\n" +
		"Type: " + string(t.TypeHint) + "\n\n"

	for _, f := range files {
		user += "## " + f.Path + "\n```\n" + f.Content + "\n```\n\n"
	}

	if len(validationErrors) > 0 {
		user += "Validation errors from the previous attempt:\n"
		for _, e := range validationErrors {
			user += "- " + e + "\n"
		}
	}

	return []llmadapter.Message{system, {Role: llmadapter.RoleUser, Content: user}}
}

// generate performs a single LLM call with the strategies' shared parameters
// (temperature=0.3, max-output-tokens=4000, spec §4.5/§4.6) and returns the parsed
// FileChanges alongside the raw call accounting.
func generate(ctx context.Context, deps Deps, modelID string, messages []llmadapter.Message) (llmadapter.Response, []task.FileChange, error) {
	resp, err := deps.LLM.Generate(ctx, llmadapter.Request{
		ModelID:         modelID,
		Messages:        messages,
		Temperature:     0.3,
		MaxOutputTokens: 4000,
	})
	if err != nil {
		return llmadapter.Response{}, nil, err
	}
	changes := deps.Parser.Parse(resp.Content)
	return resp, changes, nil
}
