// Copyright 2025 James Ross
package engine

import "time"

// computeETA projects arrival at targetPos from curPos at the given
// speed, anchored at curDT. Undefined (nil) when speed is non-positive
// or the target lies behind the current position.
func computeETA(curDT time.Time, curPos, targetPos, speedMps float64) *time.Time {
	if speedMps <= 0 || targetPos < curPos {
		return nil
	}
	secs := (targetPos - curPos) / speedMps
	t := curDT.Add(time.Duration(secs * float64(time.Second)))
	return &t
}
