// Copyright 2025 James Ross
// Package detector runs the periodic scan that turns active pigs'
// telemetry into Engine decisions and enqueues any resulting
// notification into the outbox.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flyingrobots/pigtrack/internal/engine"
	"github.com/flyingrobots/pigtrack/internal/model"
	"github.com/flyingrobots/pigtrack/internal/obs"
	"github.com/flyingrobots/pigtrack/internal/outbox"
	"github.com/flyingrobots/pigtrack/internal/refdata"
	"github.com/flyingrobots/pigtrack/internal/statestore"
	"github.com/flyingrobots/pigtrack/internal/telemetrystore"
	"go.uber.org/zap"
)

// Detector owns the periodic tick-every-active-pig loop.
type Detector struct {
	eng            *engine.Engine
	ref            refdata.ReferenceData
	telemetry      telemetrystore.TelemetryStore
	states         statestore.StateStore
	out            outbox.Store
	pollInterval   time.Duration
	activeLookback time.Duration
	toolType       string
	log            *zap.Logger
}

// New builds a Detector.
func New(
	eng *engine.Engine,
	ref refdata.ReferenceData,
	telemetry telemetrystore.TelemetryStore,
	states statestore.StateStore,
	out outbox.Store,
	pollInterval, activeLookback time.Duration,
	toolType string,
	log *zap.Logger,
) *Detector {
	return &Detector{
		eng:            eng,
		ref:            ref,
		telemetry:      telemetry,
		states:         states,
		out:            out,
		pollInterval:   pollInterval,
		activeLookback: activeLookback,
		toolType:       toolType,
		log:            log,
	}
}

// Run loops until ctx is cancelled, running one scan every
// pollInterval.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.scanOnce(ctx, time.Now()); err != nil {
				d.log.Error("detector scan failed", obs.Err(err))
			}
		}
	}
}

// scanOnce lists active pigs and ticks each one sequentially, per the
// single-writer PigState invariant Engine.Tick relies on.
func (d *Detector) scanOnce(ctx context.Context, now time.Time) error {
	since := now.Add(-d.activeLookback)
	pigIDs, err := d.telemetry.ActivePigs(ctx, since)
	if err != nil {
		return fmt.Errorf("detector: list active pigs: %w", err)
	}
	obs.ActivePigs.Set(float64(len(pigIDs)))

	for _, pigID := range pigIDs {
		if err := d.tickOne(ctx, pigID, now); err != nil {
			d.log.Error("tick failed", zap.String("pig_id", pigID), obs.Err(err))
		}
	}
	return nil
}

func (d *Detector) tickOne(ctx context.Context, pigID string, now time.Time) error {
	spanCtx, span := obs.ContextWithTickSpan(ctx, pigID, now)
	defer span.End()

	start := time.Now()
	decision, err := d.eng.Tick(spanCtx, d.ref, d.telemetry, d.states, pigID, d.toolType, now)
	obs.TickDuration.Observe(time.Since(start).Seconds())
	obs.TicksProcessed.Inc()
	if err != nil {
		obs.RecordError(spanCtx, err)
		return fmt.Errorf("engine tick for %s: %w", pigID, err)
	}

	if decision.NotifType == model.NotifNone {
		return nil
	}

	payload, err := json.Marshal(decision.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", pigID, err)
	}

	enqueueCtx, enqueueSpan := obs.StartEnqueueSpan(spanCtx, pigID, string(decision.NotifType))
	inserted, err := d.out.Enqueue(enqueueCtx, decision.DedupKey, pigID, string(decision.NotifType), payload)
	enqueueSpan.End()
	if err != nil {
		return fmt.Errorf("enqueue for %s: %w", pigID, err)
	}
	if inserted {
		obs.NotificationsEnqueued.WithLabelValues(string(decision.NotifType)).Inc()
	} else {
		obs.NotificationsDedupSkipped.WithLabelValues(string(decision.NotifType)).Inc()
	}
	return nil
}
