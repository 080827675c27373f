// Copyright 2025 James Ross
// Package refdata provides read-only access to the static reference
// data an Engine tick needs: the channel-to-kilometer-point mapping,
// the ordered POI list, and the route gap boundaries.
package refdata

import "github.com/flyingrobots/pigtrack/internal/model"

// ReferenceData is the read-only contract an Engine tick consults.
type ReferenceData interface {
	GCToKP() map[int]float64
	POIs() []model.POI
	Gaps() []model.GapPoint
}

// Static is an immutable, in-memory ReferenceData built once at
// startup from whatever backing store is configured.
type Static struct {
	gcToKP map[int]float64
	pois   []model.POI
	gaps   []model.GapPoint
}

// NewStatic builds a Static from already-loaded reference data.
func NewStatic(gcToKP map[int]float64, pois []model.POI, gaps []model.GapPoint) *Static {
	return &Static{gcToKP: gcToKP, pois: pois, gaps: gaps}
}

func (s *Static) GCToKP() map[int]float64 { return s.gcToKP }
func (s *Static) POIs() []model.POI       { return s.pois }
func (s *Static) Gaps() []model.GapPoint  { return s.gaps }
