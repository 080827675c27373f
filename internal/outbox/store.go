// Copyright 2025 James Ross
package outbox

import "context"

// Store is the durable queue contract consumed by the detector, the
// sender workers, and the approval gate.
type Store interface {
	// Enqueue performs an atomic insert keyed by dedupKey. A
	// unique-constraint conflict returns inserted=false and leaves the
	// existing row untouched; it is not an error.
	Enqueue(ctx context.Context, dedupKey, pigID, notifType string, payload []byte) (inserted bool, err error)

	// Claim selects up to batchSize NEW/RETRY, APPROVED,
	// due-for-retry rows, transitions them to SENDING under
	// skip-locked semantics, and returns them in ascending id order.
	Claim(ctx context.Context, batchSize int, workerName string) ([]Item, error)

	// AckSent transitions the given ids to SENT.
	AckSent(ctx context.Context, ids []int64) error

	// AckRetry transitions the given items to RETRY, advancing
	// attempt_count and scheduling next_attempt_at per the backoff
	// schedule.
	AckRetry(ctx context.Context, items []RetryAck) error

	// AckDead transitions the given items to DEAD.
	AckDead(ctx context.Context, items []DeadAck) error

	// ReclaimStale moves SENDING rows whose lock is older than
	// staleSeconds back to RETRY, clearing the lock. Returns the
	// number of rows reclaimed.
	ReclaimStale(ctx context.Context, staleSeconds int) (int, error)

	// DecideApproval sets a row's approval status if token matches
	// and the row is still PENDING. Returns updated=false if the row
	// was already decided or the token didn't match.
	DecideApproval(ctx context.Context, id int64, token string, decision ApprovalStatus, actor string) (updated bool, err error)

	// ListWaitingForApproval returns up to limit PENDING rows,
	// oldest first.
	ListWaitingForApproval(ctx context.Context, limit int) ([]Item, error)
}
