package validator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/forgeai/orchestrator/internal/task"
)

// TestContainerCheckerAgainstRealDocker exercises the sandbox path end to end against a
// throwaway container instead of mocking the Docker client, the way
// tests/common/containers.go stands up real containers for iter's MCP checks. Skipped
// unless ORCHESTRATOR_DOCKER_TESTS is set, since it needs a reachable Docker daemon.
func TestContainerCheckerAgainstRealDocker(t *testing.T) {
	if os.Getenv("ORCHESTRATOR_DOCKER_TESTS") == "" {
		t.Skip("set ORCHESTRATOR_DOCKER_TESTS=1 to run against a real docker daemon")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:      "golang:1.24-alpine",
		Cmd:        []string{"sleep", "30"},
		WaitingFor: wait.ForExec([]string{"true"}).WithStartupTimeout(30 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start sandbox container: %v", err)
	}
	defer c.Terminate(ctx)

	checker, err := NewContainerChecker("golang:1.24-alpine", []string{"go", "vet", "./..."}, t.TempDir(), 30*time.Second)
	if err != nil {
		t.Fatalf("NewContainerChecker: %v", err)
	}

	changes := []task.FileChange{{
		Path:       "main.go",
		ChangeType: task.ChangeModify,
		Language:   "go",
		Content:    "package main\n\nfunc main() {}\n",
	}}
	if errs := checker.CheckAll(ctx, changes); len(errs) != 0 {
		t.Errorf("CheckAll() = %v, want no errors", errs)
	}
}
