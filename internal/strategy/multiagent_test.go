package strategy

import (
	"context"
	"testing"
)

const planResponse = "```json\n" +
	`[{"title":"add foo","description":"create foo.go","target_files":["foo.go"]}]` +
	"\n```\n"

const approvedReview = "```json\n{\"approved\": true, \"issues\": []}\n```\n"

func TestMultiAgentApprovedOnFirstReview(t *testing.T) {
	transport := &scriptedTransport{responses: []string{
		planResponse,
		validFileResponse("foo.go", "package foo\n"),
		approvedReview,
	}}
	s := &MultiAgentStrategy{Deps: newTestDeps(transport)}

	result := s.Execute(context.Background(), ExecutionInput{Task: testTask(), ModelID: "test-model"})
	if !result.Succeeded {
		t.Fatalf("expected success, got reason=%q errors=%v", result.Reason, result.Errors)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("expected 1 merged change, got %d", len(result.Changes))
	}
	if transport.callCount() != 3 {
		t.Errorf("expected 3 LLM calls (plan + 1 subtask + review), got %d", transport.callCount())
	}
}

func TestMultiAgentOneReviewCycleThenAccept(t *testing.T) {
	rejectThenApprove := "```json\n{\"approved\": false, \"issues\": [\"missing error handling\"]}\n```\n"
	transport := &scriptedTransport{responses: []string{
		planResponse,
		validFileResponse("foo.go", "package foo\nfunc F( {\n"), // first execute: invalid syntax
		rejectThenApprove,
		validFileResponse("foo.go", "package foo\nfunc F() {}\n"), // second execute: fixed
	}}
	s := &MultiAgentStrategy{Deps: newTestDeps(transport)}

	result := s.Execute(context.Background(), ExecutionInput{Task: testTask(), ModelID: "test-model"})
	if !result.Succeeded {
		t.Fatalf("expected success after one review cycle, got reason=%q errors=%v", result.Reason, result.Errors)
	}
	if transport.callCount() != 4 {
		t.Errorf("expected 4 LLM calls (plan + exec + review + re-exec), got %d", transport.callCount())
	}
}

func TestMultiAgentNoSubtasksFromUnparseablePlan(t *testing.T) {
	transport := &scriptedTransport{responses: []string{"not json at all"}}
	s := &MultiAgentStrategy{Deps: newTestDeps(transport)}

	result := s.Execute(context.Background(), ExecutionInput{Task: testTask(), ModelID: "test-model"})
	if result.Succeeded {
		t.Fatal("expected failure")
	}
	if result.Reason != "no parseable changes" {
		t.Errorf("Reason = %q, want %q", result.Reason, "no parseable changes")
	}
}
