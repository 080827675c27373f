// Copyright 2025 James Ross
package sender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flyingrobots/pigtrack/internal/breaker"
	"github.com/flyingrobots/pigtrack/internal/config"
	"github.com/flyingrobots/pigtrack/internal/outbox"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSenderConfig(url string) config.Sender {
	return config.Sender{
		Workers:         1,
		BatchSize:       10,
		PollSleep:       20 * time.Millisecond,
		MaxAttempts:     3,
		StaleSending:    300 * time.Second,
		ReclaimInterval: time.Minute,
		RequestTimeout:  2 * time.Second,
		IngestURL:       url,
	}
}

func approveAll(t *testing.T, ctx context.Context, store outbox.Store) {
	t.Helper()
	items, err := store.ListWaitingForApproval(ctx, 100)
	require.NoError(t, err)
	for _, it := range items {
		ok, err := store.DecideApproval(ctx, it.ID, it.ApprovalToken, outbox.ApprovalApproved, "ops@example.com")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestRunOnceDeliversAndAcksSent(t *testing.T) {
	var gotIdempotencyKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := outbox.NewMemStore()
	ctx := context.Background()
	_, err := store.Enqueue(ctx, "dedup-1", "PIG-1", "POI Passage", []byte(`{"Pig ID":"PIG-1"}`))
	require.NoError(t, err)
	approveAll(t, ctx, store)

	cb := breaker.New(time.Minute, time.Second, 0.5, 100)
	w := New("worker-1", store, cb, testSenderConfig(srv.URL), zap.NewNop())

	n, err := w.runOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "dedup-1", gotIdempotencyKey)

	claimed, err := store.Claim(ctx, 10, "worker-2")
	require.NoError(t, err)
	require.Empty(t, claimed, "the sent row must not be claimable again")
}

func TestRunOnceRetriesOn5xxThenDeadLettersAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := outbox.NewMemStore()
	ctx := context.Background()
	_, err := store.Enqueue(ctx, "dedup-1", "PIG-1", "POI Passage", []byte(`{}`))
	require.NoError(t, err)
	approveAll(t, ctx, store)

	cfg := testSenderConfig(srv.URL)
	cfg.MaxAttempts = 2
	cb := breaker.New(time.Minute, time.Second, 0.9, 100)
	w := New("worker-1", store, cb, cfg, zap.NewNop())

	// First attempt: fails, attempt_count 0 -> 1, still retryable (1 < 2).
	_, err = w.runOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	items := store.Snapshot()
	require.Len(t, items, 1)
	require.Equal(t, outbox.StatusRetry, items[0].Status)
	require.Equal(t, 1, items[0].AttemptCount)

	// Make the row due immediately and attempt again: second failure hits
	// MaxAttempts and the row must be dead-lettered, not retried forever.
	items[0].NextAttemptAt = time.Now().Add(-time.Second)
	store.ForceRow(items[0])

	_, err = w.runOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))

	items = store.Snapshot()
	require.Len(t, items, 1)
	require.Equal(t, outbox.StatusDead, items[0].Status)
	require.Equal(t, 2, items[0].AttemptCount)
}

func TestRunOnceTreats3xxAsFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	store := outbox.NewMemStore()
	ctx := context.Background()
	_, err := store.Enqueue(ctx, "dedup-1", "PIG-1", "POI Passage", []byte(`{}`))
	require.NoError(t, err)
	approveAll(t, ctx, store)

	cb := breaker.New(time.Minute, time.Second, 0.9, 100)
	w := New("worker-1", store, cb, testSenderConfig(srv.URL), zap.NewNop())

	n, err := w.runOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	items := store.Snapshot()
	require.Len(t, items, 1)
	require.Equal(t, outbox.StatusRetry, items[0].Status, "a 3xx response is a failure and must schedule a retry, not an ack")
	require.Equal(t, 1, items[0].AttemptCount)
	require.Contains(t, items[0].LastError, "302")
}

func TestCircuitBreakerOpenSkipsDelivery(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := outbox.NewMemStore()
	ctx := context.Background()
	_, err := store.Enqueue(ctx, "dedup-1", "PIG-1", "POI Passage", []byte(`{}`))
	require.NoError(t, err)
	approveAll(t, ctx, store)

	cb := breaker.New(time.Minute, time.Hour, 0.1, 1)
	cb.Record(false)
	cb.Record(false)
	require.Equal(t, breaker.Open, cb.State())

	w := New("worker-1", store, cb, testSenderConfig(srv.URL), zap.NewNop())
	n, err := w.runOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, int32(0), atomic.LoadInt32(&calls), "an open breaker must prevent the HTTP call entirely")
}
