// Copyright 2025 James Ross
package statestore

import (
	"context"
	"sync"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// MemStore is an in-memory StateStore, living only for the duration
// of the process. Used in engine/detector tests and local demo runs.
type MemStore struct {
	mu     sync.Mutex
	states map[string]model.PigState
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{states: make(map[string]model.PigState)}
}

func (m *MemStore) Get(_ context.Context, pigID string) (model.PigState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[pigID], nil
}

func (m *MemStore) Upsert(_ context.Context, pigID string, state model.PigState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[pigID] = state
	return nil
}
