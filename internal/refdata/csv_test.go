// Copyright 2025 James Ross
package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/pigtrack/internal/model"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestLoadCSVToleratesHeaderVariants(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "GCtoKP.csv", "Global Channel,Kilometer Post\n1,10.5\n2,20.0\nbad,x\n")
	writeFile(t, dir, "POI.csv", "Valve Tag,Valve Type,GC,KP,route\nV1,Block,1,10.5,RouteA\nV2,Check,2,20.0,RouteA\n,NoTag,3,30,RouteA\n")
	writeFile(t, dir, "GAP.csv", "route,Gap Start/End,KP\nRouteA,Gap Start,5\nRouteA,Gap End,15\nRouteA,Unknown,25\n")

	ref, err := LoadCSV(dir)
	require.NoError(t, err)

	assert.Equal(t, map[int]float64{1: 10.5, 2: 20.0}, ref.GCToKP())

	pois := ref.POIs()
	require.Len(t, pois, 2)
	assert.Equal(t, "V1", pois[0].Tag)
	assert.Equal(t, "Block", pois[0].ValveType)
	require.NotNil(t, pois[0].Channel)
	assert.Equal(t, 1, *pois[0].Channel)
	require.NotNil(t, pois[0].KP)
	assert.Equal(t, 10.5, *pois[0].KP)
	assert.Equal(t, "RouteA", pois[0].Route)

	gaps := ref.Gaps()
	require.Len(t, gaps, 2)
	assert.Equal(t, model.GapStart, gaps[0].Kind)
	assert.Equal(t, 5.0, gaps[0].KP)
	assert.Equal(t, model.GapEnd, gaps[1].Kind)
	assert.Equal(t, 15.0, gaps[1].KP)
}

func TestLoadCSVMissingFilesYieldEmpty(t *testing.T) {
	dir := t.TempDir()
	ref, err := LoadCSV(dir)
	require.NoError(t, err)
	assert.Empty(t, ref.GCToKP())
	assert.Empty(t, ref.POIs())
	assert.Empty(t, ref.Gaps())
}
