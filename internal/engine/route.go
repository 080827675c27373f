// Copyright 2025 James Ross
package engine

import (
	"math"
	"sort"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// route is a named, ordered group of POIs.
type route struct {
	name string
	pois []model.POI
}

// buildRoutes groups pois by route name and sorts each group by (kp
// ascending, channel ascending, tag), with an absent kp or channel
// sorting after a present one.
func buildRoutes(pois []model.POI) []route {
	var order []string
	byName := make(map[string][]model.POI)
	for _, p := range pois {
		if _, ok := byName[p.Route]; !ok {
			order = append(order, p.Route)
		}
		byName[p.Route] = append(byName[p.Route], p)
	}

	routes := make([]route, 0, len(order))
	for _, name := range order {
		group := append([]model.POI(nil), byName[name]...)
		sort.SliceStable(group, func(i, j int) bool { return poiLess(group[i], group[j]) })
		routes = append(routes, route{name: name, pois: group})
	}
	return routes
}

func poiLess(a, b model.POI) bool {
	switch {
	case a.KP != nil && b.KP != nil:
		if *a.KP != *b.KP {
			return *a.KP < *b.KP
		}
	case a.KP != nil && b.KP == nil:
		return true
	case a.KP == nil && b.KP != nil:
		return false
	}

	switch {
	case a.Channel != nil && b.Channel != nil:
		if *a.Channel != *b.Channel {
			return *a.Channel < *b.Channel
		}
	case a.Channel != nil && b.Channel == nil:
		return true
	case a.Channel == nil && b.Channel != nil:
		return false
	}

	return a.Tag < b.Tag
}

// routeRange returns the min/max position in meters spanned by a
// route's positionable POIs. ok is false when none are positionable.
func routeRange(pois []model.POI, gcToKP map[int]float64, metersPerChannel float64) (min, max float64, ok bool) {
	for _, p := range pois {
		pos, posOK := positionMeters(p.KP, p.Channel, gcToKP, metersPerChannel)
		if !posOK {
			continue
		}
		if !ok || pos < min {
			min = pos
		}
		if !ok || pos > max {
			max = pos
		}
		ok = true
	}
	return min, max, ok
}

// resolveRoute picks the bound route name for curPos: the narrowest
// route interval (expanded by tol) containing curPos, falling back to
// the route of the nearest POI, falling back to "Unknown".
func resolveRoute(routes []route, curPos, tol float64, gcToKP map[int]float64, metersPerChannel float64) string {
	best := ""
	bestSpan := math.Inf(1)
	for _, r := range routes {
		lo, hi, ok := routeRange(r.pois, gcToKP, metersPerChannel)
		if !ok {
			continue
		}
		if curPos < lo-tol || curPos > hi+tol {
			continue
		}
		span := hi - lo
		if span < bestSpan {
			best, bestSpan = r.name, span
		}
	}
	if best != "" {
		return best
	}

	nearestRoute := ""
	nearestDist := math.Inf(1)
	for _, r := range routes {
		for _, p := range r.pois {
			pos, posOK := positionMeters(p.KP, p.Channel, gcToKP, metersPerChannel)
			if !posOK {
				continue
			}
			dist := math.Abs(pos - curPos)
			if dist < nearestDist {
				nearestRoute, nearestDist = r.name, dist
			}
		}
	}
	if nearestRoute != "" {
		return nearestRoute
	}
	return "Unknown"
}

// poisForRoute returns the sorted POIs belonging to name.
func poisForRoute(routes []route, name string) []model.POI {
	for _, r := range routes {
		if r.name == name {
			return r.pois
		}
	}
	return nil
}

// findPrevNextEnd returns prev (last POI at or before curPos+tol),
// next (first POI strictly after curPos+tol), and end (the last
// positionable POI), skipping POIs without a defined position.
func findPrevNextEnd(pois []model.POI, curPos, tol float64, gcToKP map[int]float64, metersPerChannel float64) (prev, next, end *model.POI) {
	type positioned struct {
		poi model.POI
		pos float64
	}
	var list []positioned
	for _, p := range pois {
		pos, ok := positionMeters(p.KP, p.Channel, gcToKP, metersPerChannel)
		if !ok {
			continue
		}
		list = append(list, positioned{poi: p, pos: pos})
	}
	if len(list) == 0 {
		return nil, nil, nil
	}

	last := list[len(list)-1]
	endCopy := last.poi
	end = &endCopy

	threshold := curPos + tol
	for i := range list {
		if list[i].pos <= threshold {
			p := list[i].poi
			prev = &p
		}
	}
	for i := range list {
		if list[i].pos > threshold {
			p := list[i].poi
			next = &p
			break
		}
	}
	return prev, next, end
}
