// Copyright 2025 James Ross
// Package outbox implements the durable, idempotent notification
// queue: exactly-once enqueue per dedup fingerprint, a manual
// approval gate, and a claim/ack/retry/dead-letter state machine for
// the sender workers.
package outbox

import (
	"encoding/json"
	"time"
)

// Status is an OutboxItem's delivery status.
type Status string

const (
	StatusNew     Status = "NEW"
	StatusRetry   Status = "RETRY"
	StatusSending Status = "SENDING"
	StatusSent    Status = "SENT"
	StatusDead    Status = "DEAD"
)

// ApprovalStatus is an OutboxItem's gate status.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Item is one row of the outbox queue.
type Item struct {
	ID             int64
	DedupKey       string
	PigID          string
	NotifType      string
	Payload        json.RawMessage
	Status         Status
	ApprovalStatus ApprovalStatus
	ApprovalToken  string
	AttemptCount   int
	NextAttemptAt  time.Time
	LockedBy       string
	LockedAt       *time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	SentAt         *time.Time
	DecidedBy      string
	DecidedAt      *time.Time
}

// RetryAck is a failed claim that still has attempts remaining.
type RetryAck struct {
	ID  int64
	Err string
}

// DeadAck is a failed claim that has exhausted its attempts.
type DeadAck struct {
	ID  int64
	Err string
}

// maxErrorLen bounds the stored error string.
const maxErrorLen = 1000

// truncateError clips err to maxErrorLen runes, matching the sender's
// contract that a stored failure reason is never more than 1000
// characters.
func truncateError(err string) string {
	runes := []rune(err)
	if len(runes) <= maxErrorLen {
		return err
	}
	return string(runes[:maxErrorLen])
}
