package store

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Exponential backoff parameters for outbox retry scheduling (spec §3/§4.11): base
// delay doubling per attempt, capped, with jitter so a burst of simultaneously-failing
// rows doesn't retry in lockstep against the broker.
const (
	outboxBackoffBase   = 500 * time.Millisecond
	outboxBackoffFactor = 2.0
	outboxBackoffCap    = 60 * time.Second
	outboxBackoffJitter = 0.20
)

// outboxBackoffDelay returns the delay to wait before retrying a row that has already
// failed attempts times.
func outboxBackoffDelay(attempts int) time.Duration {
	delay := float64(outboxBackoffBase) * math.Pow(outboxBackoffFactor, float64(attempts))
	if delay > float64(outboxBackoffCap) {
		delay = float64(outboxBackoffCap)
	}
	jitter := 1 + outboxBackoffJitter*(2*rand.Float64()-1)
	return time.Duration(delay * jitter)
}

// AcquireLease claims the single-row publisher lease for ownerID if it is unheld or its
// heartbeat is older than ttl, mirroring the teacher's UpsertClaimLease /
// HeartbeatClaimLease pattern (internal/store.Store) generalized from a per-bead lock to
// a single process-wide leadership row (spec §4.11: "single-leader election").
func (s *Store) AcquireLease(ownerID string, ttl time.Duration) (bool, error) {
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO publisher_lease (id, owner_id) VALUES (1, '')`); err != nil {
		return false, fmt.Errorf("store: ensure lease row: %w", err)
	}

	ttlSeconds := int(ttl.Seconds())
	res, err := s.db.Exec(
		`UPDATE publisher_lease SET owner_id = ?, acquired_at = datetime('now'), heartbeat_at = datetime('now')
		 WHERE id = 1 AND (owner_id = ? OR owner_id = '' OR heartbeat_at <= datetime('now', ? || ' seconds'))`,
		ownerID, ownerID, -ttlSeconds,
	)
	if err != nil {
		return false, fmt.Errorf("store: acquire lease: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: acquire lease rows affected: %w", err)
	}
	return rows == 1, nil
}

// HeartbeatLease refreshes the heartbeat of a lease this owner currently holds.
func (s *Store) HeartbeatLease(ownerID string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE publisher_lease SET heartbeat_at = datetime('now') WHERE id = 1 AND owner_id = ?`,
		ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("store: heartbeat lease: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ReleaseLease gives up ownership, allowing another owner to acquire immediately.
func (s *Store) ReleaseLease(ownerID string) error {
	_, err := s.db.Exec(
		`UPDATE publisher_lease SET owner_id = '' WHERE id = 1 AND owner_id = ?`,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("store: release lease: %w", err)
	}
	return nil
}

// UndeliveredOutbox returns up to limit outbox rows with no delivered_at, oldest first,
// for the Event Publisher's pump (spec §4.11).
func (s *Store) UndeliveredOutbox(limit int) ([]OutboxRow, error) {
	rows, err := s.db.Query(
		`SELECT id, event_id, task_id, kind, payload, attempts FROM outbox_messages
		 WHERE delivered_at IS NULL AND (next_attempt_at IS NULL OR next_attempt_at <= strftime('%Y-%m-%d %H:%M:%f', 'now'))
		 ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query undelivered outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxRow
	for rows.Next() {
		var r OutboxRow
		if err := rows.Scan(&r.ID, &r.EventID, &r.TaskID, &r.Kind, &r.Payload, &r.Attempts); err != nil {
			return nil, fmt.Errorf("store: scan outbox row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OutboxRow is the subset of outbox_messages columns the publisher pump needs.
type OutboxRow struct {
	ID       int64
	EventID  string
	TaskID   int64
	Kind     string
	Payload  []byte
	Attempts int
}

// MarkDelivered removes the outbox row after a successful publish (spec §3: "removed
// only after the bus acknowledges").
func (s *Store) MarkDelivered(id int64) error {
	_, err := s.db.Exec(`DELETE FROM outbox_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: mark delivered: %w", err)
	}
	return nil
}

// RecordOutboxFailure records a failed publish attempt and schedules the row's next
// eligible retry using exponential backoff (spec §3/§4.11: base 500ms, factor 2, cap
// 60s, +/-20% jitter). attempts is the row's attempt count before this failure, as
// returned by UndeliveredOutbox.
func (s *Store) RecordOutboxFailure(id int64, attempts int) error {
	delaySeconds := outboxBackoffDelay(attempts).Seconds()
	_, err := s.db.Exec(
		`UPDATE outbox_messages SET attempts = attempts + 1, next_attempt_at = strftime('%Y-%m-%d %H:%M:%f', 'now', ? || ' seconds')
		 WHERE id = ?`,
		delaySeconds, id,
	)
	if err != nil {
		return fmt.Errorf("store: record outbox failure: %w", err)
	}
	return nil
}
