// Copyright 2025 James Ross
package telemetrystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// MemStore is an in-memory TelemetryStore used in engine and detector
// tests, and for local/demo runs without a Postgres instance.
type MemStore struct {
	mu      sync.RWMutex
	samples map[string][]model.PosSample
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{samples: make(map[string][]model.PosSample)}
}

// Seed replaces all samples for pigID, sorting them by timestamp.
func (m *MemStore) Seed(pigID string, samples []model.PosSample) {
	sorted := append([]model.PosSample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DT.Before(sorted[j].DT) })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[pigID] = sorted
}

func (m *MemStore) RecentPositions(_ context.Context, pigID string, since time.Time) ([]model.PosSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.PosSample
	for _, s := range m.samples[pigID] {
		if !s.DT.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemStore) ActivePigs(_ context.Context, since time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for pigID, samples := range m.samples {
		for _, s := range samples {
			if !s.DT.Before(since) {
				out = append(out, pigID)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
