package strategy

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/forgeai/orchestrator/internal/changeparser"
	"github.com/forgeai/orchestrator/internal/llmadapter"
	"github.com/forgeai/orchestrator/internal/task"
	"github.com/forgeai/orchestrator/internal/validator"
)

// scriptedTransport replays a fixed sequence of responses, one per call, looping on the
// last entry once exhausted. It is the test double used in place of a real LLM backend
// across every strategy test.
type scriptedTransport struct {
	responses []string
	calls     int32
}

func (s *scriptedTransport) Do(ctx context.Context, req llmadapter.Request) (string, int, int, error) {
	i := int(atomic.AddInt32(&s.calls, 1)) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	content := s.responses[i]
	return content, 100, 50, nil
}

func (s *scriptedTransport) callCount() int {
	return int(atomic.LoadInt32(&s.calls))
}

type erroringTransport struct {
	err error
}

func (e erroringTransport) Do(ctx context.Context, req llmadapter.Request) (string, int, int, error) {
	return "", 0, 0, e.err
}

func newTestDeps(transport llmadapter.Transport) Deps {
	adapter := llmadapter.New([]llmadapter.Provider{{
		ModelID:    "test-model",
		Transport:  transport,
		RatePerSec: 1000,
		Burst:      1000,
	}})
	return Deps{
		LLM:       adapter,
		Parser:    changeparser.New(nil),
		Validator: validator.New(nil),
	}
}

func testTask() task.Task {
	return task.Task{ID: 1, Title: "Fix bug", Description: "short description", TypeHint: task.TypeBugFix}
}

func validFileResponse(path, content string) string {
	return fmt.Sprintf("FILE: %s\n```go\n%s\n```\n", path, content)
}
