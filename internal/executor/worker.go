package executor

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"golang.org/x/sync/semaphore"

	"github.com/forgeai/orchestrator/internal/classifier"
	"github.com/forgeai/orchestrator/internal/metrics"
	"github.com/forgeai/orchestrator/internal/store"
	"github.com/forgeai/orchestrator/internal/strategy"
)

// WorkerConfig configures the Temporal worker that picks up TaskExecutionWorkflow runs.
type WorkerConfig struct {
	HostPort       string
	TaskQueue      string
	WorkerPoolSize int64 // bounds concurrent activity executions (spec §6: worker-pool-size)
}

// DefaultWorkerConfig matches the teacher's local-dev Temporal address and a modest
// default pool size.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		HostPort:       "127.0.0.1:7233",
		TaskQueue:      "orchestrator-task-queue",
		WorkerPoolSize: 8,
	}
}

// StartWorker connects to Temporal, registers TaskExecutionWorkflow and its activities,
// and runs until the process is interrupted, mirroring the teacher's StartWorker wiring
// in internal/temporal/worker.go.
func StartWorker(cfg WorkerConfig, st *store.Store, cls *classifier.Classifier, stratDeps strategy.Deps, rec *metrics.Recorder, logger *slog.Logger) error {
	c, err := client.Dial(client.Options{HostPort: cfg.HostPort})
	if err != nil {
		return fmt.Errorf("executor: dial temporal at %s: %w", cfg.HostPort, err)
	}
	defer c.Close()

	a := &Activities{
		Store:      st,
		Classifier: cls,
		Strategy:   stratDeps,
		Pool:       semaphore.NewWeighted(cfg.WorkerPoolSize),
		Metrics:    rec,
	}
	w := worker.New(c, cfg.TaskQueue, worker.Options{})

	w.RegisterWorkflow(TaskExecutionWorkflow)
	w.RegisterActivity(a.BeginClassifyingActivity)
	w.RegisterActivity(a.ClassifyActivity)
	w.RegisterActivity(a.BeginExecutionActivity)
	w.RegisterActivity(a.RunStrategyActivity)
	w.RegisterActivity(a.FinalizeActivity)

	logger.Info("temporal worker starting", "task_queue", cfg.TaskQueue, "pool_size", cfg.WorkerPoolSize)
	return w.Run(worker.InterruptCh())
}
