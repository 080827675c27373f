// Copyright 2025 James Ross
package engine

import (
	"strconv"
	"time"

	"github.com/flyingrobots/pigtrack/internal/model"
)

func buildPayload(pigID, toolType string, event model.PigEvent, notif model.NotifType, speedMps float64, prev, next *model.POI, etaNext, etaEnd *time.Time, routeName string, curChannel *int, curKP *float64, timestamp time.Time) model.Payload {
	p := model.Payload{
		PigID:                pigID,
		ToolType:             toolType,
		PigEvent:             string(event),
		NotificationType:     string(notif),
		Speed:                strconv.FormatFloat(speedMps, 'f', 2, 64),
		ETAToNextValve:       model.FormatETA(etaNext),
		ETAToEnd:             model.FormatETA(etaEnd),
		LegacyRoute:          routeName,
		CurrentGlobalChannel: formatChannel(curChannel),
		CurrentKP:            formatKP(curKP),
		Timestamp:            model.FormatTimestamp(timestamp),
	}
	if prev != nil {
		p.PreviousValveType = prev.ValveType
		p.PreviousValveTag = prev.Tag
	}
	if next != nil {
		p.NextValveType = next.ValveType
		p.NextValveTag = next.Tag
	}
	return p
}

func formatChannel(ch *int) string {
	if ch == nil {
		return ""
	}
	return strconv.Itoa(*ch)
}

func formatKP(kp *float64) string {
	if kp == nil {
		return ""
	}
	return strconv.FormatFloat(*kp, 'f', 3, 64)
}
