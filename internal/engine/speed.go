// Copyright 2025 James Ross
package engine

import (
	"math"
	"time"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// speedResult carries the picked samples alongside the derived speed
// so callers can reuse cur/ref without recomputing the picks.
type speedResult struct {
	speedMps float64
	cur      model.PosSample
	ref      model.PosSample
	curOK    bool
	refOK    bool
}

// deriveSpeed derives the current sample, the reference sample, and
// the speed between them, applying the moving-boost short window when
// the pig has recently transitioned to motion.
func deriveSpeed(cfg Config, gcToKP map[int]float64, samples []model.PosSample, movingStartedAt *time.Time, now time.Time) speedResult {
	cur, curOK := pickCurrentSample(samples)
	if !curOK {
		return speedResult{}
	}

	window := cfg.SpeedWindowLong
	candidates := samples
	if movingStartedAt != nil && now.Sub(*movingStartedAt) <= cfg.MovingBoost {
		window = cfg.SpeedWindowShort
		candidates = filterAtOrAfter(samples, *movingStartedAt)
	}

	target := now.Add(-window)
	ref, refOK := pickReferenceSample(candidates, target)
	if !refOK {
		return speedResult{cur: cur, curOK: true}
	}

	curPos, curPosOK := positionMeters(cur.KP, cur.Channel, gcToKP, cfg.MetersPerChannel)
	refPos, refPosOK := positionMeters(ref.KP, ref.Channel, gcToKP, cfg.MetersPerChannel)
	if !curPosOK || !refPosOK {
		return speedResult{cur: cur, ref: ref, curOK: true, refOK: true}
	}

	dt := cur.DT.Sub(ref.DT)
	if dt < cfg.MinSpeedDt {
		return speedResult{cur: cur, ref: ref, curOK: true, refOK: true}
	}

	speed := math.Abs(curPos-refPos) / dt.Seconds()
	return speedResult{speedMps: speed, cur: cur, ref: ref, curOK: true, refOK: true}
}
