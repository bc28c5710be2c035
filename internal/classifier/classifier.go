// Package classifier implements the Classifier Adapter (spec §4.4): calls an external
// ML classifier behind a circuit breaker, falling back to a heuristic when the external
// service is unavailable, slow, or failing.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/forgeai/orchestrator/internal/task"
)

// Input is the material the classifier reasons over.
type Input struct {
	TaskID      string
	Title       string
	Description string
	TypeHint    string
}

// Config controls retry/timeout/circuit-breaker behavior (spec §6 configuration keys).
type Config struct {
	Endpoint        string
	Timeout         time.Duration // classifier-timeout-ms
	Retries         int           // classifier-retries
	RetryDelay      time.Duration
	BreakerThresh   int           // classifier-cb-threshold: consecutive failures to open
	BreakerResetFor time.Duration // classifier-cb-reset-sec
}

// DefaultConfig matches spec §6's defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         100 * time.Millisecond,
		Retries:         2,
		RetryDelay:      50 * time.Millisecond,
		BreakerThresh:   3,
		BreakerResetFor: 30 * time.Second,
	}
}

// Classifier is the Classifier Adapter.
type Classifier struct {
	cfg     Config
	client  *http.Client
	logger  *slog.Logger
	breaker *circuitBreaker
	now     func() time.Time
}

// New builds a Classifier Adapter.
func New(cfg Config, logger *slog.Logger) *Classifier {
	return &Classifier{
		cfg:     cfg,
		client:  &http.Client{},
		logger:  logger,
		breaker: newCircuitBreaker(cfg.BreakerThresh, cfg.BreakerResetFor, time.Now),
		now:     time.Now,
	}
}

// Classify implements spec §4.4's classify operation: call the external classifier with
// a hard timeout and 2 fast retries behind a circuit breaker; on circuit-open, timeout,
// or non-retryable error, fall back to the heuristic.
func (c *Classifier) Classify(ctx context.Context, in Input) task.Classification {
	if c.breaker.Allow() {
		if cl, ok := c.callRemote(ctx, in); ok {
			c.breaker.RecordSuccess()
			return cl
		}
		c.breaker.RecordFailure()
	}
	return Heuristic(in)
}

// remoteResponse mirrors spec §4.4's classify response shape.
type remoteResponse struct {
	TaskType   string  `json:"task_type"`
	Complexity string  `json:"complexity"`
	Confidence float64 `json:"confidence"`
}

func (c *Classifier) callRemote(ctx context.Context, in Input) (task.Classification, bool) {
	attempts := c.cfg.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return task.Classification{}, false
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		resp, err := c.doRequest(ctx, in)
		if err == nil {
			complexity, ok := parseComplexity(resp.Complexity)
			if !ok {
				c.logger.Warn("classifier: unrecognized complexity from remote, falling back", "value", resp.Complexity)
				return task.Classification{}, false
			}
			return task.Classification{
				Type:       task.TypeHint(resp.TaskType),
				Complexity: complexity,
				Confidence: resp.Confidence,
				Source:     task.SourceML,
			}, true
		}
		c.logger.Debug("classifier: remote call failed", "attempt", attempt, "err", err)
	}
	return task.Classification{}, false
}

func (c *Classifier) doRequest(ctx context.Context, in Input) (remoteResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return remoteResponse{}, fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(string(body)))
	if err != nil {
		return remoteResponse{}, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return remoteResponse{}, fmt.Errorf("classifier: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return remoteResponse{}, fmt.Errorf("classifier: unexpected status %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return remoteResponse{}, fmt.Errorf("classifier: decode response: %w", err)
	}
	return out, nil
}

func parseComplexity(s string) (task.Complexity, bool) {
	switch task.Complexity(s) {
	case task.ComplexitySimple, task.ComplexityMedium, task.ComplexityComplex, task.ComplexityEpic:
		return task.Complexity(s), true
	default:
		return "", false
	}
}
