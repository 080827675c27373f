// Copyright 2025 James Ross
// Package model holds the plain data types shared by the detection
// engine, the reference/telemetry/state adapters, and the outbox.
package model

import "time"

// PosSample is one telemetry point for a pig. At least one of Channel
// or KP should be present for the sample to be useful; immutable.
type PosSample struct {
	DT      time.Time
	Channel *int
	KP      *float64
}

// POI is a point of interest along a route, typically a valve.
// Immutable; Tag is unique within Route.
type POI struct {
	Tag       string
	ValveType string
	Channel   *int
	KP        *float64
	Route     string
}

// GapKind identifies whether a GapPoint marks the start or end of a
// coverage gap.
type GapKind string

const (
	GapStart GapKind = "start"
	GapEnd   GapKind = "end"
)

// GapPoint bounds a segment of the line where detection is known to
// be unreliable.
type GapPoint struct {
	Route string
	Kind  GapKind
	KP    float64
}

// PigState is the single mutable per-pig record. Only the Engine
// mutates it, and only under the scheduler's per-pig serialization.
type PigState struct {
	StickyRoute      string
	FirstNotifAt     *time.Time
	LastNotifAt      *time.Time
	FiredPre15ForTag  string
	FiredPre30ForTag  string
	LastEvent        string
	LastEventAt      *time.Time
	MovingStartedAt  *time.Time
}

// Clear resets the fields that must not survive a Completed decision:
// the sticky route, the pre-POI dedup flags, the in-motion marker, and
// the periodic-update timestamps, so the next run's first update fires
// fresh instead of measuring against the prior run's clock.
func (s *PigState) Clear() {
	s.StickyRoute = ""
	s.FiredPre15ForTag = ""
	s.FiredPre30ForTag = ""
	s.MovingStartedAt = nil
	s.FirstNotifAt = nil
	s.LastNotifAt = nil
}
