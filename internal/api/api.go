// Package api provides a lightweight HTTP surface over the Intake Service: submit a
// task, read its current state, request cancellation. It is a thin wrapper — all
// validation and persistence logic lives in internal/intake; this package only
// decodes requests, calls through, and encodes responses.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/forgeai/orchestrator/internal/intake"
	"github.com/forgeai/orchestrator/internal/task"
)

// Config configures the HTTP surface: bind address and auth policy.
type Config struct {
	Bind     string
	Security Security
}

// BudgetSource exposes the LLM Adapter's per-model spend headroom (SPEC_FULL.md §D),
// surfaced on /status. Narrowed to an interface so tests can run without a real Adapter.
type BudgetSource interface {
	WeeklyUsagePct(modelID string) float64
	IsInHeadroomWarning(modelID string, threshold float64) bool
}

// headroomWarningThreshold is the weekly-spend fraction at which /status flags a model
// as approaching its cap (SPEC_FULL.md §D).
const headroomWarningThreshold = 0.8

// Server is the HTTP API server.
type Server struct {
	cfg            Config
	intake         *intake.Service
	logger         *slog.Logger
	startTime      time.Time
	httpServer     *http.Server
	authMiddleware *AuthMiddleware
	budget         BudgetSource
	budgetModelIDs []string
}

// SetBudgetSource attaches the LLM Adapter's spend tracker and the model ids to report
// on /status. Left unset, /status omits the budget section, which is the shape every
// existing test in this package exercises.
func (s *Server) SetBudgetSource(b BudgetSource, modelIDs []string) {
	s.budget = b
	s.budgetModelIDs = modelIDs
}

// NewServer creates a new API server over the given Intake Service.
func NewServer(cfg Config, in *intake.Service, logger *slog.Logger) (*Server, error) {
	am, err := NewAuthMiddleware(cfg.Security, logger)
	if err != nil {
		return nil, fmt.Errorf("api: initialize auth middleware: %w", err)
	}
	return &Server{
		cfg:            cfg,
		intake:         in,
		logger:         logger,
		startTime:      time.Now(),
		authMiddleware: am,
	}, nil
}

// Close releases server resources (the audit log, if one is configured).
func (s *Server) Close() error {
	if s.authMiddleware != nil {
		return s.authMiddleware.Close()
	}
	return nil
}

// Start begins listening on the configured bind address. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/tasks", s.authMiddleware.RequireAuth(s.routeTasks))
	mux.HandleFunc("/tasks/", s.authMiddleware.RequireAuth(s.routeTaskDetail))

	s.httpServer = &http.Server{
		Addr:        s.cfg.Bind,
		Handler:     mux,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "bind", s.cfg.Bind)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"healthy":  true,
		"uptime_s": time.Since(s.startTime).Seconds(),
	})
}

// modelBudgetStatus is one model's reported weekly spend headroom on /status.
type modelBudgetStatus struct {
	ModelID         string  `json:"model_id"`
	WeeklyUsagePct  float64 `json:"weekly_usage_pct"`
	HeadroomWarning bool    `json:"headroom_warning"`
}

// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"uptime_s": time.Since(s.startTime).Seconds(),
	}
	if s.budget != nil {
		models := make([]modelBudgetStatus, 0, len(s.budgetModelIDs))
		for _, modelID := range s.budgetModelIDs {
			models = append(models, modelBudgetStatus{
				ModelID:         modelID,
				WeeklyUsagePct:  s.budget.WeeklyUsagePct(modelID),
				HeadroomWarning: s.budget.IsInHeadroomWarning(modelID, headroomWarningThreshold),
			})
		}
		resp["models"] = models
	}
	writeJSON(w, http.StatusOK, resp)
}

// /tasks dispatches on method: POST submits, anything else is rejected.
func (s *Server) routeTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.handleSubmit(w, r)
}

type submitRequest struct {
	UserID           string `json:"user_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	TypeHint         string `json:"type_hint,omitempty"`
	OverrideStrategy string `json:"override_strategy,omitempty"`
	Priority         int    `json:"priority,omitempty"`
	ClientToken      string `json:"client_token,omitempty"`
}

// POST /tasks
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id, err := s.intake.Submit(intake.Submission{
		UserID:           req.UserID,
		Title:            req.Title,
		Description:      req.Description,
		TypeHint:         task.TypeHint(req.TypeHint),
		OverrideStrategy: req.OverrideStrategy,
		Priority:         req.Priority,
		ClientToken:      req.ClientToken,
	})
	if err != nil {
		var ve *intake.ValidationError
		if isValidationError(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		s.logger.Error("submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit task")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"task_id": id})
}

// /tasks/{id} and /tasks/{id}/cancel
func (s *Server) routeTaskDetail(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tasks/")
	if strings.HasSuffix(path, "/cancel") {
		idStr := strings.TrimSuffix(path, "/cancel")
		s.handleCancel(w, r, idStr)
		return
	}
	s.handleGet(w, r, path)
}

// GET /tasks/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, idStr string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	t, err := s.intake.Get(id)
	if err != nil {
		s.logger.Error("get task failed", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// POST /tasks/{id}/cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, idStr string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	if err := s.intake.Cancel(id); err != nil {
		var ve *intake.ValidationError
		if isValidationError(err, &ve) {
			code := http.StatusBadRequest
			if ve.Reason == "not found" {
				code = http.StatusNotFound
			}
			writeError(w, code, ve.Error())
			return
		}
		s.logger.Error("cancel failed", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"task_id": id, "status": "cancelled"})
}

func isValidationError(err error, target **intake.ValidationError) bool {
	ve, ok := err.(*intake.ValidationError)
	if !ok {
		return false
	}
	*target = ve
	return true
}
