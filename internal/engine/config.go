// Copyright 2025 James Ross
// Package engine implements the per-pig detection state machine: it
// fuses position samples into a physical position, derives speed over
// adaptive windows, binds a sticky route, classifies motion, and
// selects at most one notification per tick.
package engine

import (
	"time"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// upstream30 and upstream15 are the fixed lead times for upcoming-valve
// warnings. Unlike the window lengths below, these are not tunable.
const (
	upstream30 = 30 * time.Minute
	upstream15 = 15 * time.Minute

	periodicUpdateInterval = 30 * time.Minute
)

// Config holds the tunables an Engine tick needs. Field names mirror
// the configuration surface so a config.Config can be mapped directly
// into one of these.
type Config struct {
	MetersPerChannel  float64
	POITolMeters      float64
	StoppedWindow     time.Duration
	PrePOIWindow      time.Duration
	SpeedWindowLong   time.Duration
	SpeedWindowShort  time.Duration
	MovingBoost       time.Duration
	MinSpeedDt        time.Duration
	SpeedSearchWindow time.Duration
	DefaultToolType   string
}

// DefaultConfig returns the tunables at their documented defaults.
func DefaultConfig() Config {
	return Config{
		MetersPerChannel:  25,
		POITolMeters:      50,
		StoppedWindow:     5 * time.Minute,
		PrePOIWindow:      60 * time.Second,
		SpeedWindowLong:   25 * time.Minute,
		SpeedWindowShort:  5 * time.Minute,
		MovingBoost:       10 * time.Minute,
		MinSpeedDt:        2 * time.Minute,
		SpeedSearchWindow: 35 * time.Minute,
		DefaultToolType:   model.DefaultToolType,
	}
}
