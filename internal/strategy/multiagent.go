package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/forgeai/orchestrator/internal/llmadapter"
	"github.com/forgeai/orchestrator/internal/task"
)

const multiAgentWallClock = 180 * time.Second

// Subtask is one item in the Planner's decomposition (spec §4.7).
type Subtask struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TargetFiles []string `json:"target_files"`
}

// reviewOutcome is the Reviewer's verdict: either approval or a list of issues.
type reviewOutcome struct {
	Approved bool     `json:"approved"`
	Issues   []string `json:"issues"`
}

// MultiAgentStrategy is intended for Complex/Epic tasks (spec §4.7): Planner decomposes
// into subtasks, Executor handles each as a mini SingleShot, Reviewer checks the merged
// result and may trigger at most one review cycle.
type MultiAgentStrategy struct {
	Deps Deps
}

func (s *MultiAgentStrategy) Name() Name { return MultiAgent }

func (s *MultiAgentStrategy) Execute(ctx context.Context, in ExecutionInput) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, multiAgentWallClock)
	defer cancel()

	var totalTok int
	var totalCost float64

	subtasks, planResp, err := s.plan(ctx, in)
	if err != nil {
		r := failureFromErr(ctx, err, start)
		return r
	}
	totalTok += planResp.TokensPrompt + planResp.TokensCompletion
	totalCost += planResp.CostUSD

	if len(subtasks) == 0 {
		return Result{
			Succeeded:  false,
			Reason:     "no parseable changes",
			TokensUsed: totalTok,
			CostUSD:    totalCost,
			Duration:   time.Since(start),
		}
	}

	merged, execTok, execCost, execErr := s.executeSubtasks(ctx, in, subtasks, nil)
	totalTok += execTok
	totalCost += execCost
	if execErr != nil {
		r := failureFromErr(ctx, execErr, start)
		r.TokensUsed = totalTok
		r.CostUSD = totalCost
		return r
	}

	review, reviewResp, err := s.review(ctx, in, merged)
	if err != nil {
		r := failureFromErr(ctx, err, start)
		r.TokensUsed = totalTok
		r.CostUSD = totalCost
		return r
	}
	totalTok += reviewResp.TokensPrompt + reviewResp.TokensCompletion
	totalCost += reviewResp.CostUSD

	if !review.Approved {
		// at most one review cycle: re-execute with feedback injected, then accept
		// whatever comes out (spec §4.7: "at most one review cycle").
		merged, execTok, execCost, execErr = s.executeSubtasks(ctx, in, subtasks, review.Issues)
		totalTok += execTok
		totalCost += execCost
		if execErr != nil {
			r := failureFromErr(ctx, execErr, start)
			r.TokensUsed = totalTok
			r.CostUSD = totalCost
			return r
		}
	}

	changes := flattenMerged(merged)
	vr := s.Deps.Validator.Validate(ctx, changes)
	if !vr.OK {
		return Result{
			Succeeded:  false,
			Reason:     "validation failed",
			Errors:     vr.Errors,
			TokensUsed: totalTok,
			CostUSD:    totalCost,
			Duration:   time.Since(start),
		}
	}

	return Result{
		Succeeded:  true,
		Changes:    changes,
		TokensUsed: totalTok,
		CostUSD:    totalCost,
		Duration:   time.Since(start),
	}
}

func (s *MultiAgentStrategy) plan(ctx context.Context, in ExecutionInput) ([]Subtask, llmadapter.Response, error) {
	system := llmadapter.Message{
		Role: llmadapter.RoleSystem,
		Content: "Decompose the task into subtasks. Output a single fenced JSON code block " +
			"containing an array of {\"title\", \"description\", \"target_files\"} objects.",
	}
	user := llmadapter.Message{
		Role:    llmadapter.RoleUser,
		Content: "Task: " + in.Task.Title + "\nDescription: " + in.Task.Description,
	}

	resp, err := s.Deps.LLM.Generate(ctx, llmadapter.Request{
		ModelID:         in.ModelID,
		Messages:        []llmadapter.Message{system, user},
		Temperature:     0.3,
		MaxOutputTokens: 4000,
	})
	if err != nil {
		return nil, llmadapter.Response{}, err
	}

	subtasks, parseErr := parsePlan(resp.Content)
	if parseErr != nil {
		return nil, resp, nil // empty subtasks => caller reports "no parseable changes"
	}
	return subtasks, resp, nil
}

// parsePlan extracts the single fenced JSON block the Planner emits, reusing the
// Change Parser's "ask for a structured block" idiom (SPEC_FULL.md §E).
func parsePlan(content string) ([]Subtask, error) {
	block := extractFirstFence(content)
	if block == "" {
		return nil, fmt.Errorf("no fenced block in planner output")
	}
	var subtasks []Subtask
	if err := json.Unmarshal([]byte(block), &subtasks); err != nil {
		return nil, err
	}
	return subtasks, nil
}

func (s *MultiAgentStrategy) executeSubtasks(ctx context.Context, in ExecutionInput, subtasks []Subtask, feedback []string) (map[string]task.FileChange, int, float64, error) {
	merged := make(map[string]task.FileChange)
	var totalTok int
	var totalCost float64

	for _, st := range subtasks {
		subtaskAsTask := in.Task
		subtaskAsTask.Title = st.Title
		subtaskAsTask.Description = st.Description

		messages := buildMessages(subtaskAsTask, in.RelevantFiles, feedback)
		resp, changes, err := generate(ctx, s.Deps, in.ModelID, messages)
		if err != nil {
			return merged, totalTok, totalCost, err
		}
		totalTok += resp.TokensPrompt + resp.TokensCompletion
		totalCost += resp.CostUSD

		for _, c := range changes {
			if existing, ok := merged[c.Path]; ok {
				_ = existing // last-write-wins; conflict already implied by overwrite below
			}
			merged[c.Path] = c
		}
	}
	return merged, totalTok, totalCost, nil
}

func (s *MultiAgentStrategy) review(ctx context.Context, in ExecutionInput, merged map[string]task.FileChange) (reviewOutcome, llmadapter.Response, error) {
	system := llmadapter.Message{
		Role: llmadapter.RoleSystem,
		Content: "Review the merged change set. Output a single fenced JSON code block: " +
			"{\"approved\": bool, \"issues\": [string]}.",
	}

	user := "Task: " + in.Task.Title + "\n\n"
	for _, c := range flattenMerged(merged) {
		user += "## " + c.Path + "\n```\n" + c.Content + "\n```\n\n"
	}

	resp, err := s.Deps.LLM.Generate(ctx, llmadapter.Request{
		ModelID:         in.ModelID,
		Messages:        []llmadapter.Message{system, {Role: llmadapter.RoleUser, Content: user}},
		Temperature:     0.3,
		MaxOutputTokens: 2000,
	})
	if err != nil {
		return reviewOutcome{}, llmadapter.Response{}, err
	}

	block := extractFirstFence(resp.Content)
	var outcome reviewOutcome
	if block == "" {
		return reviewOutcome{Approved: true}, resp, nil
	}
	if err := json.Unmarshal([]byte(block), &outcome); err != nil {
		return reviewOutcome{Approved: true}, resp, nil
	}
	return outcome, resp, nil
}

// flattenMerged returns the merged change set in deterministic path order.
func flattenMerged(merged map[string]task.FileChange) []task.FileChange {
	paths := make([]string, 0, len(merged))
	for p := range merged {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]task.FileChange, 0, len(paths))
	for _, p := range paths {
		out = append(out, merged[p])
	}
	return out
}
