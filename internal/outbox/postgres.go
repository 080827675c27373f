// Copyright 2025 James Ross
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore is the production Store, backed by the
// notifications_outbox table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing *sql.DB. The caller owns the
// connection's lifecycle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Enqueue(ctx context.Context, dedupKey, pigID, notifType string, payload []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications_outbox (
			dedup_key, pig_id, notif_type, payload,
			status, approval_status, approval_token,
			attempt_count, next_attempt_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, now(), now(), now())
		ON CONFLICT (dedup_key) DO NOTHING`,
		dedupKey, pigID, notifType, payload, StatusNew, ApprovalPending, newApprovalToken())
	if err != nil {
		return false, fmt.Errorf("outbox: enqueue %s: %w", dedupKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("outbox: enqueue rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) Claim(ctx context.Context, batchSize int, workerName string) ([]Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("outbox: claim begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, dedup_key, pig_id, notif_type, payload, attempt_count
		FROM notifications_outbox
		WHERE status IN ('NEW', 'RETRY')
		  AND approval_status = 'APPROVED'
		  AND next_attempt_at <= now()
		ORDER BY id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("outbox: claim select: %w", err)
	}

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.DedupKey, &it.PigID, &it.NotifType, &it.Payload, &it.AttemptCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("outbox: claim scan: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("outbox: claim iterate: %w", err)
	}
	rows.Close()

	if len(items) == 0 {
		return nil, tx.Commit()
	}

	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE notifications_outbox
		SET status = 'SENDING', locked_by = $1, locked_at = now(), updated_at = now()
		WHERE id = ANY($2)`, workerName, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("outbox: claim update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("outbox: claim commit: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) AckSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications_outbox
		SET status = 'SENT', sent_at = now(), locked_by = '', locked_at = NULL, updated_at = now()
		WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("outbox: ack sent: %w", err)
	}
	return nil
}

func (s *PostgresStore) AckRetry(ctx context.Context, items []RetryAck) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("outbox: ack retry begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		// attempt_count in the row is pre-increment; the delay is
		// computed from the post-increment count.
		var attemptCount int
		if err := tx.QueryRowContext(ctx, `SELECT attempt_count FROM notifications_outbox WHERE id = $1`, it.ID).Scan(&attemptCount); err != nil {
			return fmt.Errorf("outbox: ack retry read attempt_count for %d: %w", it.ID, err)
		}
		nextAttempt := time.Now().Add(nextAttemptDelay(attemptCount + 1))
		if _, err := tx.ExecContext(ctx, `
			UPDATE notifications_outbox
			SET status = 'RETRY', attempt_count = attempt_count + 1,
			    next_attempt_at = $2, last_error = $3,
			    locked_by = '', locked_at = NULL, updated_at = now()
			WHERE id = $1`, it.ID, nextAttempt, truncateError(it.Err)); err != nil {
			return fmt.Errorf("outbox: ack retry update %d: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("outbox: ack retry commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) AckDead(ctx context.Context, items []DeadAck) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("outbox: ack dead begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			UPDATE notifications_outbox
			SET status = 'DEAD', attempt_count = attempt_count + 1,
			    last_error = $2, locked_by = '', locked_at = NULL, updated_at = now()
			WHERE id = $1`, it.ID, truncateError(it.Err)); err != nil {
			return fmt.Errorf("outbox: ack dead update %d: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("outbox: ack dead commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReclaimStale(ctx context.Context, staleSeconds int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications_outbox
		SET status = 'RETRY', next_attempt_at = now(), locked_by = '', locked_at = NULL, updated_at = now()
		WHERE status = 'SENDING' AND locked_at < now() - ($1 || ' seconds')::interval`, staleSeconds)
	if err != nil {
		return 0, fmt.Errorf("outbox: reclaim stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("outbox: reclaim stale rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) DecideApproval(ctx context.Context, id int64, token string, decision ApprovalStatus, actor string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications_outbox
		SET approval_status = $1, decided_by = $2, decided_at = now(), updated_at = now()
		WHERE id = $3 AND approval_token = $4 AND approval_status = 'PENDING'`,
		decision, actor, id, token)
	if err != nil {
		return false, fmt.Errorf("outbox: decide approval %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("outbox: decide approval rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListWaitingForApproval(ctx context.Context, limit int) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dedup_key, pig_id, notif_type, payload, approval_token, created_at
		FROM notifications_outbox
		WHERE approval_status = 'PENDING'
		ORDER BY id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: list waiting for approval: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.DedupKey, &it.PigID, &it.NotifType, &it.Payload, &it.ApprovalToken, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox: list waiting for approval scan: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
