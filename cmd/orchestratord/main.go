// Command orchestratord runs the Task Orchestration Core: the intake HTTP API, the
// Temporal worker that executes tasks, the event publisher pump, and the staleness
// reaper, all sharing one task store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/forgeai/orchestrator/internal/api"
	"github.com/forgeai/orchestrator/internal/changeparser"
	"github.com/forgeai/orchestrator/internal/classifier"
	"github.com/forgeai/orchestrator/internal/config"
	"github.com/forgeai/orchestrator/internal/executor"
	"github.com/forgeai/orchestrator/internal/intake"
	"github.com/forgeai/orchestrator/internal/llmadapter"
	"github.com/forgeai/orchestrator/internal/metrics"
	"github.com/forgeai/orchestrator/internal/outbox"
	"github.com/forgeai/orchestrator/internal/reaper"
	"github.com/forgeai/orchestrator/internal/store"
	"github.com/forgeai/orchestrator/internal/strategy"
	"github.com/forgeai/orchestrator/internal/validator"
)

func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	configPath := flag.String("config", "orchestrator.toml", "path to config file")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	metricsBind := flag.String("metrics-bind", "127.0.0.1:9090", "bind address for the Prometheus exposition endpoint")
	flag.Parse()

	cfgManager, err := config.LoadManager(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	logger := configureLogger(cfg.General.LogLevel, *dev)
	slog.SetDefault(logger)
	logger.Info("orchestratord starting", "config", *configPath)

	st, err := store.Open(cfg.General.StateDB)
	if err != nil {
		logger.Error("failed to open task store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	rec, err := metrics.New()
	if err != nil {
		logger.Error("failed to build metrics recorder", "error", err)
		os.Exit(1)
	}

	cls := classifier.New(classifier.Config{
		Endpoint:        cfg.Classifier.Endpoint,
		Timeout:         time.Duration(cfg.Classifier.TimeoutMs) * time.Millisecond,
		Retries:         cfg.Classifier.Retries,
		RetryDelay:      time.Duration(cfg.Classifier.RetryDelayMs) * time.Millisecond,
		BreakerThresh:   cfg.Classifier.CircuitThreshold,
		BreakerResetFor: time.Duration(cfg.Classifier.CircuitResetSec) * time.Second,
	}, logger.With("component", "classifier"))

	providers := make([]llmadapter.Provider, 0, len(cfg.Models.Map))
	modelIDs := make([]string, 0, len(cfg.Models.Map))
	for _, modelID := range cfg.Models.Map {
		providers = append(providers, llmadapter.Provider{
			ModelID:   modelID,
			Transport: llmadapter.NewHTTPTransport(cfg.Models.Endpoint, os.Getenv("ORCHESTRATOR_LLM_API_KEY"), nil),
		})
		modelIDs = append(modelIDs, modelID)
	}
	llm := llmadapter.New(providers)
	stratDeps := strategy.Deps{
		LLM:       llm,
		Parser:    changeparser.New(logger.With("component", "changeparser")),
		Validator: validator.New(logger.With("component", "validator")),
	}

	simpleDeadline, mediumDeadline, complexDeadline := cfg.DeadlinesDuration()
	executorClient, err := executor.NewClient(cfg.Temporal.HostPort, cfg.Temporal.TaskQueue, executor.Deadlines{
		Simple:  simpleDeadline,
		Medium:  mediumDeadline,
		Complex: complexDeadline,
	}, cfg.Models.Map)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer executorClient.Close()

	in := intake.New(st)
	in.SetDispatcher(&executor.Dispatcher{
		Client: executorClient,
		Store:  st,
		Logger: logger.With("component", "dispatcher"),
	})

	apiSrv, err := api.NewServer(api.Config{
		Bind: cfg.API.Bind,
		Security: api.Security{
			Enabled:          cfg.API.Security.Enabled,
			AllowedTokens:    cfg.API.Security.AllowedTokens,
			RequireLocalOnly: cfg.API.Security.RequireLocalOnly,
			AuditLog:         cfg.API.Security.AuditLog,
		},
	}, in, logger.With("component", "api"))
	if err != nil {
		logger.Error("failed to create api server", "error", err)
		os.Exit(1)
	}
	defer apiSrv.Close()
	apiSrv.SetBudgetSource(llm.Budget(), modelIDs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("starting temporal worker", "host_port", cfg.Temporal.HostPort, "task_queue", cfg.Temporal.TaskQueue)
		workerCfg := executor.WorkerConfig{
			HostPort:       cfg.Temporal.HostPort,
			TaskQueue:      cfg.Temporal.TaskQueue,
			WorkerPoolSize: cfg.Strategy.WorkerPoolSize,
		}
		if err := executor.StartWorker(workerCfg, st, cls, stratDeps, rec, logger.With("component", "executor")); err != nil {
			logger.Error("temporal worker error", "error", err)
		}
	}()

	nc, js, err := outbox.Connect(cfg.NATS.URL)
	if err != nil {
		logger.Error("failed to connect to nats", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	publisher := outbox.New(st, js, outbox.Config{
		PollInterval: time.Duration(cfg.Outbox.PollIntervalMs) * time.Millisecond,
		BatchSize:    cfg.Outbox.BatchSize,
		LeaseTTL:     time.Duration(cfg.Outbox.LeaseTTLSec) * time.Second,
		OwnerID:      cfg.Outbox.OwnerID,
	}, rec, logger.With("component", "outbox"))
	go func() {
		if err := publisher.Run(ctx); err != nil {
			logger.Error("outbox publisher error", "error", err)
		}
	}()

	r := reaper.New(st, reaper.Config{
		Interval:    time.Duration(cfg.Reaper.IntervalSec) * time.Second,
		StaleWindow: time.Duration(cfg.Reaper.StaleWindowSec) * time.Second,
	}, rec, logger.With("component", "reaper"))
	go func() {
		if err := r.Run(ctx); err != nil {
			logger.Error("reaper error", "error", err)
		}
	}()

	metricsSrv := &http.Server{Addr: *metricsBind, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		if err := apiSrv.Start(ctx); err != nil {
			logger.Error("api server error", "error", err)
		}
	}()

	logger.Info("orchestratord running", "bind", cfg.API.Bind, "metrics_bind", *metricsBind)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			if err := cfgManager.Reload(*configPath); err != nil {
				logger.Error("config reload failed", "error", err)
				continue
			}
			logger.Info("config reloaded")
		default:
			shutdownStart := time.Now()
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			metricsSrv.Shutdown(shutdownCtx)
			shutdownCancel()

			logger.Info("orchestratord stopped", "shutdown_duration", time.Since(shutdownStart).String())
			return
		}
	}
}
