// Copyright 2025 James Ross
package engine

import (
	"math"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// classifyMotion derives the raw (pre-overlay) motion classification
// from the positionable samples inside the stopped-detection window.
func classifyMotion(stoppedSamples []model.PosSample, gcToKP map[int]float64, metersPerChannel float64, curPos float64, endPos float64, endDefined bool, tol float64) model.PigEvent {
	if endDefined && math.Abs(curPos-endPos) <= tol {
		return model.EventCompleted
	}

	var positions []float64
	for _, s := range stoppedSamples {
		if pos, ok := positionMeters(s.KP, s.Channel, gcToKP, metersPerChannel); ok {
			positions = append(positions, pos)
		}
	}
	if len(positions) < 2 {
		return model.EventNotDetected
	}

	min, max := positions[0], positions[0]
	for _, p := range positions[1:] {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if max-min <= tol {
		return model.EventStopped
	}
	return model.EventMoving
}
