// Copyright 2025 James Ross
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/flyingrobots/pigtrack/internal/model"
	"github.com/flyingrobots/pigtrack/internal/refdata"
	"github.com/flyingrobots/pigtrack/internal/statestore"
	"github.com/flyingrobots/pigtrack/internal/telemetrystore"
)

// Engine is a deterministic per-pig state machine. A single Engine
// value is safe for concurrent use across different pig ids; callers
// are responsible for serializing ticks for the same pig id, per the
// single-writer PigState invariant.
type Engine struct {
	cfg Config
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Decision is the result of one tick: the snapshot payload, the
// notification type selected (model.NotifNone if none), and the
// dedup fingerprint to enqueue it under (empty when NotifNone).
type Decision struct {
	Payload   model.Payload
	NotifType model.NotifType
	DedupKey  string
}

// Tick computes a snapshot and at most one notification for pigID and
// persists the pig's updated state. now is supplied by the caller
// rather than read from the clock so ticks are reproducible in tests.
func (e *Engine) Tick(ctx context.Context, ref refdata.ReferenceData, telemetry telemetrystore.TelemetryStore, states statestore.StateStore, pigID, toolType string, now time.Time) (Decision, error) {
	state, err := states.Get(ctx, pigID)
	if err != nil {
		return Decision{}, fmt.Errorf("engine: load state for %s: %w", pigID, err)
	}

	samples, err := telemetry.RecentPositions(ctx, pigID, now.Add(-e.cfg.SpeedSearchWindow))
	if err != nil {
		return Decision{}, fmt.Errorf("engine: load telemetry for %s: %w", pigID, err)
	}

	if toolType == "" {
		toolType = e.cfg.DefaultToolType
	}

	sr := deriveSpeed(e.cfg, ref.GCToKP(), samples, state.MovingStartedAt, now)
	if !sr.curOK {
		// InputMissing: telemetry unavailable or undefined position.
		// Emit a Not Detected snapshot; no notification, no state churn
		// beyond recording the raw classification.
		state.LastEvent = string(model.EventNotDetected)
		state.LastEventAt = &now
		if err := states.Upsert(ctx, pigID, state); err != nil {
			return Decision{}, fmt.Errorf("engine: persist state for %s: %w", pigID, err)
		}
		payload := buildPayload(pigID, toolType, model.EventNotDetected, model.NotifNone, 0, nil, nil, nil, nil, "Unknown", nil, nil, now)
		return Decision{Payload: payload, NotifType: model.NotifNone}, nil
	}

	curPos, _ := positionMeters(sr.cur.KP, sr.cur.Channel, ref.GCToKP(), e.cfg.MetersPerChannel)

	routes := buildRoutes(ref.POIs())
	routeName := state.StickyRoute
	if routeName == "" || routeName == "Unknown" {
		routeName = resolveRoute(routes, curPos, e.cfg.POITolMeters, ref.GCToKP(), e.cfg.MetersPerChannel)
	}
	state.StickyRoute = routeName

	routePOIs := poisForRoute(routes, routeName)
	prev, next, end := findPrevNextEnd(routePOIs, curPos, e.cfg.POITolMeters, ref.GCToKP(), e.cfg.MetersPerChannel)

	var endPos float64
	var endDefined bool
	if end != nil {
		endPos, endDefined = positionMeters(end.KP, end.Channel, ref.GCToKP(), e.cfg.MetersPerChannel)
	}

	stoppedSince := now.Add(-e.cfg.StoppedWindow)
	stoppedSamples := filterAtOrAfter(samples, stoppedSince)
	rawEvent := classifyMotion(stoppedSamples, ref.GCToKP(), e.cfg.MetersPerChannel, curPos, endPos, endDefined, e.cfg.POITolMeters)

	emittedEvent := rawEvent
	if model.PigEvent(state.LastEvent) == model.EventStopped && rawEvent == model.EventMoving {
		emittedEvent = model.EventResumption
		t := sr.cur.DT
		state.MovingStartedAt = &t
	}
	if rawEvent == model.EventStopped || rawEvent == model.EventCompleted {
		state.MovingStartedAt = nil
	}
	state.LastEvent = string(rawEvent)
	lastEventAt := sr.cur.DT
	state.LastEventAt = &lastEventAt

	var etaNext, etaEnd *time.Time
	if next != nil {
		nextPos, nextOK := positionMeters(next.KP, next.Channel, ref.GCToKP(), e.cfg.MetersPerChannel)
		if nextOK {
			etaNext = computeETA(sr.cur.DT, curPos, nextPos, sr.speedMps)
		}
	}
	if endDefined {
		etaEnd = computeETA(sr.cur.DT, curPos, endPos, sr.speedMps)
	}

	var gapsOnRoute []model.GapPoint
	for _, g := range ref.Gaps() {
		if g.Route == routeName {
			gapsOnRoute = append(gapsOnRoute, g)
		}
	}

	notif, identity := selectNotification(notifyInput{
		event:      emittedEvent,
		curPos:     curPos,
		endPos:     endPos,
		endDefined: endDefined,
		routePOIs:  routePOIs,
		gaps:       gapsOnRoute,
		next:       next,
		etaNext:    etaNext,
		speed:      sr.speedMps,
		tol:        e.cfg.POITolMeters,
		prePOI:     e.cfg.PrePOIWindow,
		now:        now,
		gcToKP:     ref.GCToKP(),
		metersPerC: e.cfg.MetersPerChannel,
	}, &state)

	payload := buildPayload(pigID, toolType, emittedEvent, notif, sr.speedMps, prev, next, etaNext, etaEnd, routeName, sr.cur.Channel, sr.cur.KP, now)

	var dedupKey string
	if notif != model.NotifNone {
		dedupKey = buildDedupKey(pigID, notif, identity, now)
	}

	if notif == model.NotifRunCompletion {
		state.Clear()
	}

	if err := states.Upsert(ctx, pigID, state); err != nil {
		return Decision{}, fmt.Errorf("engine: persist state for %s: %w", pigID, err)
	}

	return Decision{Payload: payload, NotifType: notif, DedupKey: dedupKey}, nil
}
