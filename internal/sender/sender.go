// Copyright 2025 James Ross
// Package sender drains the notifications_outbox: it claims
// APPROVED, due rows, POSTs them to the downstream ingest endpoint
// with an idempotency key, and acks each attempt as sent, retried, or
// dead-lettered.
package sender

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/flyingrobots/pigtrack/internal/breaker"
	"github.com/flyingrobots/pigtrack/internal/config"
	"github.com/flyingrobots/pigtrack/internal/obs"
	"github.com/flyingrobots/pigtrack/internal/outbox"
	"go.uber.org/zap"
)

// Worker claims and delivers one batch of outbox rows per iteration.
type Worker struct {
	name    string
	store   outbox.Store
	client  *http.Client
	breaker *breaker.CircuitBreaker
	cfg     config.Sender
	log     *zap.Logger
}

// New builds a Worker posting to cfg.IngestURL.
func New(name string, store outbox.Store, cb *breaker.CircuitBreaker, cfg config.Sender, log *zap.Logger) *Worker {
	return &Worker{
		name:    name,
		store:   store,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		breaker: cb,
		cfg:     cfg,
		log:     log.With(zap.String("worker", name)),
	}
}

// Run loops claim/send/ack until ctx is cancelled, sleeping
// cfg.PollSleep between empty claims.
func (w *Worker) Run(ctx context.Context) {
	go w.reportBreakerState(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := w.runOnce(ctx)
		if err != nil {
			w.log.Error("claim batch failed", obs.Err(err))
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.PollSleep):
			}
		}
	}
}

// reportBreakerState periodically reflects the breaker's state into
// the circuit_breaker_state gauge.
func (w *Worker) reportBreakerState(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch w.breaker.State() {
			case breaker.Closed:
				obs.CircuitBreakerState.Set(0)
			case breaker.HalfOpen:
				obs.CircuitBreakerState.Set(1)
			case breaker.Open:
				obs.CircuitBreakerState.Set(2)
			}
		}
	}
}

// runOnce claims and processes a single batch, returning the number
// of rows claimed.
func (w *Worker) runOnce(ctx context.Context) (int, error) {
	spanCtx, span := obs.StartClaimSpan(ctx, w.name, w.cfg.BatchSize)
	items, err := w.store.Claim(spanCtx, w.cfg.BatchSize, w.name)
	span.End()
	if err != nil {
		return 0, fmt.Errorf("sender: claim: %w", err)
	}

	var sent []int64
	var retries []outbox.RetryAck
	var dead []outbox.DeadAck

	for _, item := range items {
		if !w.breaker.Allow() {
			if item.AttemptCount+1 >= w.cfg.MaxAttempts {
				dead = append(dead, outbox.DeadAck{ID: item.ID, Err: "circuit breaker open"})
			} else {
				retries = append(retries, outbox.RetryAck{ID: item.ID, Err: "circuit breaker open"})
			}
			continue
		}

		err := w.deliver(ctx, item)
		prevState := w.breaker.State()
		w.breaker.Record(err == nil)
		if curr := w.breaker.State(); prevState != curr && curr == breaker.Open {
			obs.CircuitBreakerTrips.Inc()
		}
		if err == nil {
			sent = append(sent, item.ID)
			continue
		}

		if item.AttemptCount+1 >= w.cfg.MaxAttempts {
			dead = append(dead, outbox.DeadAck{ID: item.ID, Err: err.Error()})
		} else {
			retries = append(retries, outbox.RetryAck{ID: item.ID, Err: err.Error()})
		}
	}

	if len(sent) > 0 {
		if err := w.store.AckSent(ctx, sent); err != nil {
			w.log.Error("ack sent failed", obs.Err(err))
		}
		obs.NotificationsSent.Add(float64(len(sent)))
	}
	if len(retries) > 0 {
		if err := w.store.AckRetry(ctx, retries); err != nil {
			w.log.Error("ack retry failed", obs.Err(err))
		}
		obs.NotificationsRetried.Add(float64(len(retries)))
	}
	if len(dead) > 0 {
		if err := w.store.AckDead(ctx, dead); err != nil {
			w.log.Error("ack dead failed", obs.Err(err))
		}
		obs.NotificationsDeadLettered.Add(float64(len(dead)))
	}

	return len(items), nil
}

// deliver POSTs one item's payload to the ingest endpoint, keyed by
// its dedup key so the downstream side can also dedupe a redelivery.
func (w *Worker) deliver(ctx context.Context, item outbox.Item) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.IngestURL, bytes.NewReader(item.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", item.DedupKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingest endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// RunReclaimSweep periodically moves stale SENDING rows back to
// RETRY, grounded on the reaper's "is the owner still alive" idiom but
// expressed as a single SQL statement instead of a Redis processing
// list scan.
func RunReclaimSweep(ctx context.Context, store outbox.Store, cfg config.Sender, log *zap.Logger) {
	ticker := time.NewTicker(cfg.ReclaimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.ReclaimStale(ctx, int(cfg.StaleSending.Seconds()))
			if err != nil {
				log.Error("reclaim sweep failed", obs.Err(err))
				continue
			}
			if n > 0 {
				log.Info("reclaimed stale outbox rows", zap.Int("count", n))
				obs.StaleClaimsReclaimed.Add(float64(n))
			}
		}
	}
}
