// Copyright 2025 James Ross
package engine

import (
	"math"
	"time"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// notifyInput bundles everything the priority dispatch needs beyond
// the mutable PigState.
type notifyInput struct {
	event      model.PigEvent
	curPos     float64
	endPos     float64
	endDefined bool
	routePOIs  []model.POI
	gaps       []model.GapPoint
	next       *model.POI
	etaNext    *time.Time
	speed      float64
	tol        float64
	prePOI     time.Duration
	now        time.Time
	gcToKP     map[int]float64
	metersPerC float64
}

// selectNotification applies the strict priority order, mutating the
// dedup-relevant fields of state as a side effect of firing. identity
// disambiguates repeat firings of the same notification type for
// different logical targets (a POI tag, a gap, and so on).
func selectNotification(in notifyInput, state *model.PigState) (notif model.NotifType, identity string) {
	if in.event == model.EventCompleted || (in.endDefined && math.Abs(in.curPos-in.endPos) <= in.tol) {
		return model.NotifRunCompletion, ""
	}

	for _, p := range in.routePOIs {
		pos, ok := positionMeters(p.KP, p.Channel, in.gcToKP, in.metersPerC)
		if !ok {
			continue
		}
		if math.Abs(in.curPos-pos) <= in.tol {
			return model.NotifPOIPassage, p.Tag
		}
	}

	for _, g := range in.gaps {
		gapPos := g.KP * 1000
		if math.Abs(in.curPos-gapPos) <= in.tol {
			if g.Kind == model.GapStart {
				return model.NotifGapStart, in.gapIdentity(g)
			}
			return model.NotifGapEnd, in.gapIdentity(g)
		}
	}

	if in.next != nil && in.speed > 0 && in.etaNext != nil {
		leadTime := in.etaNext.Sub(in.now)

		if state.FiredPre30ForTag != in.next.Tag && absDuration(leadTime-upstream30) <= in.prePOI {
			state.FiredPre30ForTag = in.next.Tag
			return model.NotifUpstream30, in.next.Tag
		}
		if state.FiredPre15ForTag != in.next.Tag && absDuration(leadTime-upstream15) <= in.prePOI {
			state.FiredPre15ForTag = in.next.Tag
			return model.NotifUpstream15, in.next.Tag
		}
	}

	if state.FirstNotifAt == nil {
		now := in.now
		state.FirstNotifAt = &now
		state.LastNotifAt = &now
		return model.NotifPeriodicUpdate, ""
	}
	if in.now.Sub(*state.LastNotifAt) >= periodicUpdateInterval {
		now := in.now
		state.LastNotifAt = &now
		return model.NotifPeriodicUpdate, ""
	}

	return model.NotifNone, ""
}

func (in notifyInput) gapIdentity(g model.GapPoint) string {
	return g.Route + "|" + string(g.Kind)
}
