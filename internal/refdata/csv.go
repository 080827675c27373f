// Copyright 2025 James Ross
package refdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// LoadCSV bootstraps a Static ReferenceData from a directory
// containing GCtoKP.csv, POI.csv, and GAP.csv. A missing file yields
// an empty set for that part rather than an error, matching the
// original CSV bootstrap's tolerance for partial reference data.
func LoadCSV(dir string) (*Static, error) {
	gcToKP, err := loadGCToKP(filepath.Join(dir, "GCtoKP.csv"))
	if err != nil {
		return nil, err
	}
	pois, err := loadPOIs(filepath.Join(dir, "POI.csv"))
	if err != nil {
		return nil, err
	}
	gaps, err := loadGaps(filepath.Join(dir, "GAP.csv"))
	if err != nil {
		return nil, err
	}
	return NewStatic(gcToKP, pois, gaps), nil
}

// pick tries each candidate header in order and returns the first
// non-empty trimmed value, or "" if none matched.
func pick(row map[string]string, candidates ...string) string {
	for _, c := range candidates {
		if v, ok := row[c]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// readRows opens path as a CSV file and returns each data row as a
// header-name-keyed map. Returns (nil, nil) if the file is absent.
func readRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("refdata: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refdata: read header %s: %w", path, err)
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("refdata: read row %s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func loadGCToKP(path string) (map[int]float64, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	m := make(map[int]float64, len(rows))
	for _, row := range rows {
		gcS := pick(row, "GC", "Global Channel", "GlobalChannel")
		kpS := pick(row, "KP", "Kilometer Post", "KilometerPost")
		if gcS == "" || kpS == "" {
			continue
		}
		gcF, err := strconv.ParseFloat(gcS, 64)
		if err != nil {
			continue
		}
		kp, err := strconv.ParseFloat(kpS, 64)
		if err != nil {
			continue
		}
		m[int(gcF)] = kp
	}
	return m, nil
}

func loadPOIs(path string) ([]model.POI, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	var out []model.POI
	for _, row := range rows {
		tag := pick(row, "Tag", "Valve Tag", "tag", "valve tag", "ValveTag", "Valve_Tag")
		if tag == "" {
			continue
		}
		route := pick(row, "Legacy Route Name", "LegacyRouteName", "Legacy_Route", "LegacyRoute", "route")
		valveType := pick(row, "Type", "Valve Type", "valve type", "ValveType", "Valve_Type")
		gcS := pick(row, "GC", "Global Channel", "GlobalChannel")
		kpS := pick(row, "KP", "Kilometer Post", "KilometerPost")

		poi := model.POI{Tag: tag, ValveType: valveType, Route: route}
		if gcS != "" {
			if gcF, err := strconv.ParseFloat(gcS, 64); err == nil {
				gc := int(gcF)
				poi.Channel = &gc
			}
		}
		if kpS != "" {
			if kp, err := strconv.ParseFloat(kpS, 64); err == nil {
				poi.KP = &kp
			}
		}
		out = append(out, poi)
	}
	return out, nil
}

func loadGaps(path string) ([]model.GapPoint, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	var out []model.GapPoint
	for _, row := range rows {
		route := pick(row, "Legacy Route Name", "LegacyRouteName", "Legacy_Route", "LegacyRoute", "route")
		kindRow := strings.ToLower(pick(row, "Gap Start/End", "GapStartEnd", "Gap_Start_End", "gap start/end", "type", "Kind", "kind"))
		kpS := pick(row, "KP", "Kilometer Post", "KilometerPost")
		if kpS == "" {
			continue
		}
		kp, err := strconv.ParseFloat(kpS, 64)
		if err != nil {
			continue
		}

		var kind model.GapKind
		switch {
		case strings.Contains(kindRow, "start"):
			kind = model.GapStart
		case strings.Contains(kindRow, "end"):
			kind = model.GapEnd
		default:
			continue
		}
		out = append(out, model.GapPoint{Route: route, Kind: kind, KP: kp})
	}
	return out, nil
}
