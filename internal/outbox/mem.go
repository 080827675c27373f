// Copyright 2025 James Ross
package outbox

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and by the detector's
// own unit tests; it is not wired into cmd/pigtrack.
type MemStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*Item
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[int64]*Item)}
}

func (s *MemStore) Enqueue(ctx context.Context, dedupKey, pigID, notifType string, payload []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.rows {
		if it.DedupKey == dedupKey {
			return false, nil
		}
	}

	s.nextID++
	now := time.Now()
	s.rows[s.nextID] = &Item{
		ID:             s.nextID,
		DedupKey:       dedupKey,
		PigID:          pigID,
		NotifType:      notifType,
		Payload:        append([]byte(nil), payload...),
		Status:         StatusNew,
		ApprovalStatus: ApprovalPending,
		ApprovalToken:  newApprovalToken(),
		NextAttemptAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return true, nil
}

func (s *MemStore) Claim(ctx context.Context, batchSize int, workerName string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*Item
	now := time.Now()
	for _, it := range s.rows {
		if (it.Status == StatusNew || it.Status == StatusRetry) &&
			it.ApprovalStatus == ApprovalApproved &&
			!it.NextAttemptAt.After(now) {
			candidates = append(candidates, it)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	if len(candidates) > batchSize {
		candidates = candidates[:batchSize]
	}

	claimed := make([]Item, 0, len(candidates))
	for _, it := range candidates {
		it.Status = StatusSending
		it.LockedBy = workerName
		lockedAt := now
		it.LockedAt = &lockedAt
		it.UpdatedAt = now
		claimed = append(claimed, *it)
	}
	return claimed, nil
}

func (s *MemStore) AckSent(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, id := range ids {
		it, ok := s.rows[id]
		if !ok {
			continue
		}
		it.Status = StatusSent
		it.SentAt = &now
		it.LockedBy = ""
		it.LockedAt = nil
		it.UpdatedAt = now
	}
	return nil
}

func (s *MemStore) AckRetry(ctx context.Context, items []RetryAck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, ack := range items {
		it, ok := s.rows[ack.ID]
		if !ok {
			continue
		}
		it.AttemptCount++
		it.Status = StatusRetry
		it.NextAttemptAt = now.Add(nextAttemptDelay(it.AttemptCount))
		it.LastError = truncateError(ack.Err)
		it.LockedBy = ""
		it.LockedAt = nil
		it.UpdatedAt = now
	}
	return nil
}

func (s *MemStore) AckDead(ctx context.Context, items []DeadAck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, ack := range items {
		it, ok := s.rows[ack.ID]
		if !ok {
			continue
		}
		it.AttemptCount++
		it.Status = StatusDead
		it.LastError = truncateError(ack.Err)
		it.LockedBy = ""
		it.LockedAt = nil
		it.UpdatedAt = now
	}
	return nil
}

func (s *MemStore) ReclaimStale(ctx context.Context, staleSeconds int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(staleSeconds) * time.Second)
	n := 0
	now := time.Now()
	for _, it := range s.rows {
		if it.Status == StatusSending && it.LockedAt != nil && it.LockedAt.Before(cutoff) {
			it.Status = StatusRetry
			it.NextAttemptAt = now
			it.LockedBy = ""
			it.LockedAt = nil
			it.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *MemStore) DecideApproval(ctx context.Context, id int64, token string, decision ApprovalStatus, actor string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.rows[id]
	if !ok || it.ApprovalToken != token || it.ApprovalStatus != ApprovalPending {
		return false, nil
	}
	now := time.Now()
	it.ApprovalStatus = decision
	it.DecidedBy = actor
	it.DecidedAt = &now
	it.UpdatedAt = now
	return true, nil
}

// Snapshot returns a copy of every row, for test assertions that need
// to see status/attempt fields the Store interface doesn't expose.
func (s *MemStore) Snapshot() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, 0, len(s.rows))
	for _, it := range s.rows {
		items = append(items, *it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// ForceRow overwrites a row wholesale, for tests that need to fast
// forward NextAttemptAt past a scheduled backoff without waiting on it.
func (s *MemStore) ForceRow(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[item.ID] = &item
}

func (s *MemStore) ListWaitingForApproval(ctx context.Context, limit int) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*Item
	for _, it := range s.rows {
		if it.ApprovalStatus == ApprovalPending {
			pending = append(pending, it)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	items := make([]Item, 0, len(pending))
	for _, it := range pending {
		items = append(items, *it)
	}
	return items, nil
}
