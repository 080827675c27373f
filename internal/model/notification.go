// Copyright 2025 James Ross
package model

// PigEvent is the motion classification reported in a tick's snapshot.
type PigEvent string

const (
	EventNotDetected PigEvent = "Not Detected"
	EventStopped     PigEvent = "Stopped"
	EventMoving      PigEvent = "Moving"
	EventResumption  PigEvent = "Resumption"
	EventCompleted   PigEvent = "Completed"
)

// NotifType enumerates the closed set of notification kinds the
// Engine may select, ordered highest to lowest priority.
type NotifType string

const (
	NotifNone           NotifType = ""
	NotifRunCompletion  NotifType = "Run Completion"
	NotifPOIPassage     NotifType = "POI Passage"
	NotifGapStart       NotifType = "Gap Start"
	NotifGapEnd         NotifType = "Gap End"
	NotifUpstream30     NotifType = "30 Min Upstream"
	NotifUpstream15     NotifType = "15 Min Upstream"
	NotifPeriodicUpdate NotifType = "30 Min Update"
)

// DefaultToolType is used when a pig's tool type is unset or blank.
const DefaultToolType = "Cleaning Tool"
