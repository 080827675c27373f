// Copyright 2025 James Ross
package engine

import (
	"time"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// hasPosition reports whether a sample carries enough information to
// be positioned (at least one of channel/kp set).
func hasPosition(s model.PosSample) bool {
	return s.KP != nil || s.Channel != nil
}

// pickCurrentSample returns the newest-timestamped positionable
// sample. Ties are broken by later insertion order (the later entry
// in the slice wins).
func pickCurrentSample(samples []model.PosSample) (model.PosSample, bool) {
	var best model.PosSample
	var bestDT time.Time
	found := false
	for _, s := range samples {
		if !hasPosition(s) {
			continue
		}
		if !found || !s.DT.Before(bestDT) {
			best, bestDT, found = s, s.DT, true
		}
	}
	return best, found
}

// pickReferenceSample returns the positionable sample at or before
// target closest to it; if none exists, the absolute-closest
// positionable sample in time.
func pickReferenceSample(samples []model.PosSample, target time.Time) (model.PosSample, bool) {
	var bestBefore, bestAbs model.PosSample
	var bestBeforeDiff, bestAbsDiff time.Duration
	foundBefore, foundAbs := false, false

	for _, s := range samples {
		if !hasPosition(s) {
			continue
		}
		diffAbs := absDuration(s.DT.Sub(target))
		if !foundAbs || diffAbs < bestAbsDiff {
			bestAbs, bestAbsDiff, foundAbs = s, diffAbs, true
		}
		if !s.DT.After(target) {
			diff := target.Sub(s.DT)
			if !foundBefore || diff < bestBeforeDiff {
				bestBefore, bestBeforeDiff, foundBefore = s, diff, true
			}
		}
	}
	if foundBefore {
		return bestBefore, true
	}
	if foundAbs {
		return bestAbs, true
	}
	return model.PosSample{}, false
}

// filterAtOrAfter returns the subset of samples with dt >= since.
func filterAtOrAfter(samples []model.PosSample, since time.Time) []model.PosSample {
	var out []model.PosSample
	for _, s := range samples {
		if !s.DT.Before(since) {
			out = append(out, s)
		}
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
