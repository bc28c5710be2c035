// Package metrics wires the orchestration core's ambient counters and gauges through
// an OpenTelemetry meter, with a Prometheus exposition endpoint for scraping. The
// teacher carries both go.opentelemetry.io/otel and prometheus/client_golang only as
// indirect dependencies of the temporal SDK and its own promauto-adjacent tooling —
// this package is the one place in the repository that imports and uses them directly,
// since the teacher's own /metrics handler (internal/api/api.go's handleMetrics) hand-
// writes exposition text against raw store queries rather than going through a real
// metrics library.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/forgeai/orchestrator"

// Recorder holds the counters and gauges the executor, outbox and reaper record
// against. This package installs no otel exporter: the instruments go to whatever
// MeterProvider is globally installed, and none of them appear on Handler's endpoint.
type Recorder struct {
	meter metric.Meter

	tasksSubmitted   metric.Int64Counter
	tasksByOutcome   metric.Int64Counter
	iterationsUsed   metric.Int64Counter
	tokensUsed       metric.Int64Counter
	costUSD          metric.Float64Counter
	outboxBacklog    metric.Int64UpDownCounter
	tasksInFlight    metric.Int64UpDownCounter
	classifyDuration metric.Float64Histogram
}

// New constructs a Recorder against the global otel MeterProvider. Unless the caller
// has installed a provider, that is otel's no-op default and nothing is recorded.
func New() (*Recorder, error) {
	m := otel.GetMeterProvider().Meter(meterName)

	tasksSubmitted, err := m.Int64Counter("tasks_submitted_total",
		metric.WithDescription("Tasks accepted by the Intake Service"))
	if err != nil {
		return nil, err
	}
	tasksByOutcome, err := m.Int64Counter("tasks_terminal_total",
		metric.WithDescription("Tasks that reached a terminal status, labeled by outcome"))
	if err != nil {
		return nil, err
	}
	iterationsUsed, err := m.Int64Counter("execution_iterations_total",
		metric.WithDescription("Iterations consumed across all executions"))
	if err != nil {
		return nil, err
	}
	tokensUsed, err := m.Int64Counter("execution_tokens_total",
		metric.WithDescription("Tokens consumed across all executions"))
	if err != nil {
		return nil, err
	}
	costUSD, err := m.Float64Counter("execution_cost_usd_total",
		metric.WithDescription("Cost in USD accrued across all executions"))
	if err != nil {
		return nil, err
	}
	outboxBacklog, err := m.Int64UpDownCounter("outbox_backlog",
		metric.WithDescription("Undelivered outbox rows"))
	if err != nil {
		return nil, err
	}
	tasksInFlight, err := m.Int64UpDownCounter("tasks_in_flight",
		metric.WithDescription("Tasks currently in Classifying or Executing"))
	if err != nil {
		return nil, err
	}
	classifyDuration, err := m.Float64Histogram("classifier_duration_seconds",
		metric.WithDescription("Classifier adapter call latency"))
	if err != nil {
		return nil, err
	}

	return &Recorder{
		meter:            m,
		tasksSubmitted:   tasksSubmitted,
		tasksByOutcome:   tasksByOutcome,
		iterationsUsed:   iterationsUsed,
		tokensUsed:       tokensUsed,
		costUSD:          costUSD,
		outboxBacklog:    outboxBacklog,
		tasksInFlight:    tasksInFlight,
		classifyDuration: classifyDuration,
	}, nil
}

// TaskSubmitted records one task accepted by Intake.
func (r *Recorder) TaskSubmitted(ctx context.Context) {
	r.tasksSubmitted.Add(ctx, 1)
	r.tasksInFlight.Add(ctx, 1)
}

// TaskFinalized records one task reaching a terminal status, labeled by outcome kind
// (e.g. "succeeded", "failed", "timed_out", "cancelled").
func (r *Recorder) TaskFinalized(ctx context.Context, outcome string, iterations int, tokens int, costUSD float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.tasksByOutcome.Add(ctx, 1, attrs)
	r.tasksInFlight.Add(ctx, -1)
	if iterations > 0 {
		r.iterationsUsed.Add(ctx, int64(iterations))
	}
	if tokens > 0 {
		r.tokensUsed.Add(ctx, int64(tokens))
	}
	if costUSD > 0 {
		r.costUSD.Add(ctx, costUSD)
	}
}

// OutboxBacklog sets the current undelivered-row count (called once per pump tick).
func (r *Recorder) OutboxBacklog(ctx context.Context, delta int64) {
	r.outboxBacklog.Add(ctx, delta)
}

// ClassifyDuration records one classifier adapter call's wall-clock latency.
func (r *Recorder) ClassifyDuration(ctx context.Context, seconds float64) {
	r.classifyDuration.Record(ctx, seconds)
}

// Handler returns the Prometheus scrape endpoint, serving whatever collectors are
// registered on the default Prometheus registry; the Recorder's otel instruments are
// not registered there.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}
