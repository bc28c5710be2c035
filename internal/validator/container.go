package validator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/forgeai/orchestrator/internal/task"
)

// ContainerChecker runs a project-configured compile/test command inside a short-lived
// sandboxed Docker container against the full change set, rather than per-file — it is
// wired into the Adapter as a SetChecker (WithSetChecker), whose CheckAll receives the
// whole change set, since compile/test checks are whole-changeset by nature.
// Grounded on the teacher's internal/dispatch/docker.go sandboxed-execution pattern.
type ContainerChecker struct {
	cli      *client.Client
	image    string
	command  []string
	workDir  string
	timeout  time.Duration
}

// NewContainerChecker builds a ContainerChecker. image is the sandbox image (must
// already contain the project's toolchain); command is run with the change set's files
// materialized under /workspace; workDir is the host directory the change set is
// written to before the run.
func NewContainerChecker(image string, command []string, workDir string, timeout time.Duration) (*ContainerChecker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("validator: init docker client: %w", err)
	}
	return &ContainerChecker{cli: cli, image: image, command: command, workDir: workDir, timeout: timeout}, nil
}

// CheckAll materializes every change under workDir and runs the configured command in
// a fresh container. If the command exits non-zero it returns a single error string
// holding the container's combined stdout and stderr.
func (c *ContainerChecker) CheckAll(ctx context.Context, changes []task.FileChange) []string {
	if len(changes) == 0 {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := materialize(c.workDir, changes); err != nil {
		return []string{fmt.Sprintf("validator-unavailable: %v", err)}
	}

	workDirAbs, err := filepath.Abs(c.workDir)
	if err != nil {
		return []string{fmt.Sprintf("validator-unavailable: resolve workdir: %v", err)}
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: workDirAbs, Target: "/workspace"},
		},
	}

	resp, err := c.cli.ContainerCreate(runCtx, &container.Config{
		Image:      c.image,
		Cmd:        c.command,
		WorkingDir: "/workspace",
		Tty:        false,
	}, hostConfig, nil, nil, "")
	if err != nil {
		return []string{fmt.Sprintf("validator-unavailable: create container: %v", err)}
	}
	defer c.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	if err := c.cli.ContainerStart(runCtx, resp.ID, container.StartOptions{}); err != nil {
		return []string{fmt.Sprintf("validator-unavailable: start container: %v", err)}
	}

	statusCh, errCh := c.cli.ContainerWait(runCtx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil {
			return []string{fmt.Sprintf("validator-unavailable: wait container: %v", err)}
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	if exitCode == 0 {
		return nil
	}

	out, err := c.cli.ContainerLogs(context.Background(), resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return []string{fmt.Sprintf("compile/test check failed (exit %d)", exitCode)}
	}
	defer out.Close()

	var stdout, stderr bytes.Buffer
	stdcopy.StdCopy(&stdout, &stderr, out)
	combined := stdout.String() + stderr.String()
	if combined == "" {
		return []string{fmt.Sprintf("compile/test check failed (exit %d)", exitCode)}
	}
	return []string{combined}
}

func materialize(workDir string, changes []task.FileChange) error {
	for _, c := range changes {
		if c.ChangeType == task.ChangeDelete {
			continue
		}
		full := filepath.Join(workDir, c.Path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, []byte(c.Content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
