// Copyright 2025 James Ross
package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/pigtrack/internal/engine"
	"github.com/flyingrobots/pigtrack/internal/model"
	"github.com/flyingrobots/pigtrack/internal/refdata"
	"github.com/flyingrobots/pigtrack/internal/statestore"
	"github.com/flyingrobots/pigtrack/internal/telemetrystore"
)

func kpPtr(v float64) *float64 { return &v }

// routeR is the fixture route from spec scenarios: POIs V1/V2/END at
// kp 10.000/11.000/12.000, no gaps.
func routeR() *refdata.Static {
	pois := []model.POI{
		{Tag: "V1", ValveType: "Block", Route: "R", KP: kpPtr(10.000)},
		{Tag: "V2", ValveType: "Check", Route: "R", KP: kpPtr(11.000)},
		{Tag: "END", ValveType: "Block", Route: "R", KP: kpPtr(12.000)},
	}
	return refdata.NewStatic(map[int]float64{}, pois, nil)
}

func newFixture() (*engine.Engine, *refdata.Static, *telemetrystore.MemStore, *statestore.MemStore) {
	e := engine.New(engine.DefaultConfig())
	ref := routeR()
	tel := telemetrystore.NewMemStore()
	st := statestore.NewMemStore()
	return e, ref, tel, st
}

func TestTickNoTelemetryIsNotDetected(t *testing.T) {
	e, ref, tel, st := newFixture()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	dec, err := e.Tick(ctx, ref, tel, st, "PIG_001", "", now)
	require.NoError(t, err)

	assert.Equal(t, string(model.EventNotDetected), dec.Payload.PigEvent)
	assert.Equal(t, "0.00", dec.Payload.Speed)
	assert.Equal(t, "", dec.Payload.NotificationType)
	assert.Equal(t, "Unknown", dec.Payload.LegacyRoute)
	assert.Equal(t, model.NotifNone, dec.NotifType)
}

func TestTickStoppedFiresFirstPeriodicUpdate(t *testing.T) {
	e, ref, tel, st := newFixture()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Clear of any POI (V1/V2/END are at 10.000/11.000/12.000 km).
	tel.Seed("PIG_001", []model.PosSample{
		{DT: now.Add(-5 * time.Minute), KP: kpPtr(10.500)},
		{DT: now.Add(-3 * time.Minute), KP: kpPtr(10.500)},
		{DT: now, KP: kpPtr(10.500)},
	})

	dec, err := e.Tick(ctx, ref, tel, st, "PIG_001", "", now)
	require.NoError(t, err)

	assert.Equal(t, string(model.EventStopped), dec.Payload.PigEvent)
	assert.Equal(t, "0.00", dec.Payload.Speed)
	assert.Equal(t, string(model.NotifPeriodicUpdate), dec.Payload.NotificationType)
	assert.NotEmpty(t, dec.DedupKey)

	got, err := st.Get(ctx, "PIG_001")
	require.NoError(t, err)
	require.NotNil(t, got.LastNotifAt)
	assert.True(t, got.LastNotifAt.Equal(now))
}

func TestTickMovingComputesSpeedAndETA(t *testing.T) {
	e, ref, tel, st := newFixture()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tel.Seed("PIG_001", []model.PosSample{
		{DT: now.Add(-5 * time.Minute), KP: kpPtr(10.500)},
		{DT: now, KP: kpPtr(10.700)},
	})

	dec, err := e.Tick(ctx, ref, tel, st, "PIG_001", "", now)
	require.NoError(t, err)

	assert.Equal(t, string(model.EventMoving), dec.Payload.PigEvent)
	assert.Equal(t, "0.67", dec.Payload.Speed)
	assert.NotEmpty(t, dec.Payload.ETAToNextValve)
	assert.Equal(t, string(model.NotifPeriodicUpdate), dec.Payload.NotificationType)
}

func TestTickResumptionAfterStopped(t *testing.T) {
	e, ref, tel, st := newFixture()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tel.Seed("PIG_001", []model.PosSample{
		{DT: t0.Add(-5 * time.Minute), KP: kpPtr(10.500)},
		{DT: t0, KP: kpPtr(10.500)},
	})
	dec0, err := e.Tick(ctx, ref, tel, st, "PIG_001", "", t0)
	require.NoError(t, err)
	require.Equal(t, string(model.EventStopped), dec0.Payload.PigEvent)

	t1 := t0.Add(time.Minute)
	tel.Seed("PIG_001", []model.PosSample{
		{DT: t1.Add(-5 * time.Minute), KP: kpPtr(10.500)},
		{DT: t1, KP: kpPtr(10.700)},
	})

	dec1, err := e.Tick(ctx, ref, tel, st, "PIG_001", "", t1)
	require.NoError(t, err)
	assert.Equal(t, string(model.EventResumption), dec1.Payload.PigEvent)

	got, err := st.Get(ctx, "PIG_001")
	require.NoError(t, err)
	require.NotNil(t, got.MovingStartedAt)
}

func TestTickRunCompletionClearsStickyRoute(t *testing.T) {
	e, ref, tel, st := newFixture()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tel.Seed("PIG_001", []model.PosSample{
		{DT: now.Add(-5 * time.Minute), KP: kpPtr(11.900)},
		{DT: now, KP: kpPtr(11.980)},
	})

	dec, err := e.Tick(ctx, ref, tel, st, "PIG_001", "", now)
	require.NoError(t, err)

	assert.Equal(t, string(model.EventCompleted), dec.Payload.PigEvent)
	assert.Equal(t, string(model.NotifRunCompletion), dec.Payload.NotificationType)

	got, err := st.Get(ctx, "PIG_001")
	require.NoError(t, err)
	assert.Equal(t, "", got.StickyRoute)
	assert.Nil(t, got.MovingStartedAt)
}

func TestTickPOIPassageTakesPriorityOverUpstreamWarnings(t *testing.T) {
	e, ref, tel, st := newFixture()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// 166 m in 5 min puts the ETA to V2 (11.000 km) about 30 minutes
	// out, so a 30 Min Upstream warning would fire if not for V1.
	tel.Seed("PIG_001", []model.PosSample{
		{DT: now.Add(-5 * time.Minute), KP: kpPtr(9.834)},
		{DT: now, KP: kpPtr(10.000)},
	})

	dec, err := e.Tick(ctx, ref, tel, st, "PIG_001", "", now)
	require.NoError(t, err)

	assert.Equal(t, string(model.NotifPOIPassage), dec.Payload.NotificationType)
}

func TestTickDefaultsToolType(t *testing.T) {
	e, ref, tel, st := newFixture()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	dec, err := e.Tick(ctx, ref, tel, st, "PIG_001", "", now)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultToolType, dec.Payload.ToolType)

	dec2, err := e.Tick(ctx, ref, tel, st, "PIG_001", "Custom Tool", now)
	require.NoError(t, err)
	assert.Equal(t, "Custom Tool", dec2.Payload.ToolType)
}

func TestTickPeriodicUpdateDedupKeyDiffersAcrossBuckets(t *testing.T) {
	e, ref, tel, st := newFixture()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tel.Seed("PIG_001", []model.PosSample{{DT: now, KP: kpPtr(10.500)}})
	dec1, err := e.Tick(ctx, ref, tel, st, "PIG_001", "", now)
	require.NoError(t, err)
	require.Equal(t, string(model.NotifPeriodicUpdate), dec1.Payload.NotificationType)

	later := now.Add(40 * time.Minute)
	tel.Seed("PIG_001", []model.PosSample{{DT: later, KP: kpPtr(10.500)}})
	dec2, err := e.Tick(ctx, ref, tel, st, "PIG_001", "", later)
	require.NoError(t, err)
	require.Equal(t, string(model.NotifPeriodicUpdate), dec2.Payload.NotificationType)

	assert.NotEqual(t, dec1.DedupKey, dec2.DedupKey)
}
