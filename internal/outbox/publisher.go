// Package outbox implements the Event Publisher (spec §4.11): a cron-scheduled pump
// that drains undelivered OutboxMessage rows from the Task Store and publishes them to
// NATS, under a single-leader lease so only one process instance publishes at a time.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/robfig/cron"

	"github.com/forgeai/orchestrator/internal/metrics"
	"github.com/forgeai/orchestrator/internal/store"
)

// Config configures the publisher pump.
type Config struct {
	PollInterval time.Duration // spec §6: outbox-poll-interval-ms
	BatchSize    int           // spec §6: outbox-batch-size
	LeaseTTL     time.Duration
	OwnerID      string // stable per-process identity for lease ownership
}

// DefaultConfig matches spec §6's suggested defaults.
func DefaultConfig(ownerID string) Config {
	return Config{
		PollInterval: 200 * time.Millisecond,
		BatchSize:    32,
		LeaseTTL:     10 * time.Second,
		OwnerID:      ownerID,
	}
}

// publisherClient is the narrow slice of jetstream.JetStream the pump needs, kept as
// its own interface so tests can substitute a fake rather than standing up a broker.
type publisherClient interface {
	Publish(ctx context.Context, subj string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher pumps undelivered outbox rows to NATS JetStream, one subject per event
// kind (spec §6: "tasks.events.<kind>"), deleting each row only after the broker
// acknowledges the publish.
type Publisher struct {
	store   *store.Store
	js      publisherClient
	cfg     Config
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// New constructs a Publisher. js is the caller's JetStream context (see Connect for a
// helper that dials a NATS server and wraps it). rec may be nil to disable instrumentation.
func New(st *store.Store, js publisherClient, cfg Config, rec *metrics.Recorder, logger *slog.Logger) *Publisher {
	return &Publisher{store: st, js: js, cfg: cfg, metrics: rec, logger: logger}
}

// Connect dials a NATS server and wraps the connection in a JetStream context, the
// pattern the pack's semspec app.go uses (nats.Connect then jetstream.New).
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("outbox: connect to nats at %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("outbox: create jetstream context: %w", err)
	}
	return nc, js, nil
}

// Run schedules the pump on a cron job at cfg.PollInterval, blocking until ctx is
// cancelled. Only the process currently holding the publisher_lease actually drains;
// other instances poll the lease each tick and stay idle otherwise.
func (p *Publisher) Run(ctx context.Context) error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", p.cfg.PollInterval)
	if err := c.AddFunc(spec, func() { p.tick(ctx) }); err != nil {
		return fmt.Errorf("outbox: schedule pump: %w", err)
	}

	p.logger.Info("outbox publisher starting", "poll_interval", p.cfg.PollInterval, "batch_size", p.cfg.BatchSize)
	c.Start()
	<-ctx.Done()
	c.Stop()
	_ = p.store.ReleaseLease(p.cfg.OwnerID)
	return nil
}

func (p *Publisher) tick(ctx context.Context) {
	acquired, err := p.store.AcquireLease(p.cfg.OwnerID, p.cfg.LeaseTTL)
	if err != nil {
		p.logger.Error("outbox: lease acquisition failed", "error", err)
		return
	}
	if !acquired {
		return // another instance holds the lease this tick
	}

	rows, err := p.store.UndeliveredOutbox(p.cfg.BatchSize)
	if err != nil {
		p.logger.Error("outbox: failed to list undelivered rows", "error", err)
		return
	}
	if p.metrics != nil {
		p.metrics.OutboxBacklog(ctx, int64(len(rows)))
	}

	for _, row := range rows {
		subject := fmt.Sprintf("tasks.events.%s", row.Kind)
		if _, err := p.js.Publish(ctx, subject, row.Payload); err != nil {
			p.logger.Warn("outbox: publish failed, will retry", "event_id", row.EventID, "subject", subject, "error", err)
			if incErr := p.store.RecordOutboxFailure(row.ID, row.Attempts); incErr != nil {
				p.logger.Error("outbox: failed to record publish attempt", "error", incErr)
			}
			continue
		}
		if err := p.store.MarkDelivered(row.ID); err != nil {
			p.logger.Error("outbox: failed to mark delivered after successful publish", "event_id", row.EventID, "error", err)
		}
	}
}
