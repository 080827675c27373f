// Copyright 2025 James Ross
package refdata

import (
	"database/sql"
	"fmt"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// LoadPostgres reads the gc_to_kp, pois, and gaps reference tables
// once and returns an immutable Static snapshot. Reference data
// changes rarely enough that a full reload, not a live-query
// implementation, is the right shape; callers that need fresher data
// can call LoadPostgres again on a schedule.
func LoadPostgres(db *sql.DB) (*Static, error) {
	gcToKP, err := loadGCToKPTable(db)
	if err != nil {
		return nil, err
	}
	pois, err := loadPOIsTable(db)
	if err != nil {
		return nil, err
	}
	gaps, err := loadGapsTable(db)
	if err != nil {
		return nil, err
	}
	return NewStatic(gcToKP, pois, gaps), nil
}

func loadGCToKPTable(db *sql.DB) (map[int]float64, error) {
	rows, err := db.Query(`SELECT gc, kp FROM gc_to_kp`)
	if err != nil {
		return nil, fmt.Errorf("refdata: query gc_to_kp: %w", err)
	}
	defer rows.Close()

	m := make(map[int]float64)
	for rows.Next() {
		var gc int
		var kp float64
		if err := rows.Scan(&gc, &kp); err != nil {
			return nil, fmt.Errorf("refdata: scan gc_to_kp row: %w", err)
		}
		m[gc] = kp
	}
	return m, rows.Err()
}

func loadPOIsTable(db *sql.DB) ([]model.POI, error) {
	rows, err := db.Query(`SELECT tag, valve_type, channel, kp, route FROM pois ORDER BY route, kp`)
	if err != nil {
		return nil, fmt.Errorf("refdata: query pois: %w", err)
	}
	defer rows.Close()

	var out []model.POI
	for rows.Next() {
		var (
			tag, valveType, route string
			channel               sql.NullInt64
			kp                    sql.NullFloat64
		)
		if err := rows.Scan(&tag, &valveType, &channel, &kp, &route); err != nil {
			return nil, fmt.Errorf("refdata: scan poi row: %w", err)
		}
		poi := model.POI{Tag: tag, ValveType: valveType, Route: route}
		if channel.Valid {
			c := int(channel.Int64)
			poi.Channel = &c
		}
		if kp.Valid {
			k := kp.Float64
			poi.KP = &k
		}
		out = append(out, poi)
	}
	return out, rows.Err()
}

func loadGapsTable(db *sql.DB) ([]model.GapPoint, error) {
	rows, err := db.Query(`SELECT route, kind, kp FROM gaps ORDER BY route, kp`)
	if err != nil {
		return nil, fmt.Errorf("refdata: query gaps: %w", err)
	}
	defer rows.Close()

	var out []model.GapPoint
	for rows.Next() {
		var route, kind string
		var kp float64
		if err := rows.Scan(&route, &kind, &kp); err != nil {
			return nil, fmt.Errorf("refdata: scan gap row: %w", err)
		}
		out = append(out, model.GapPoint{Route: route, Kind: model.GapKind(kind), KP: kp})
	}
	return out, rows.Err()
}
