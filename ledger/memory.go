// Package ledger provides LedgerStore implementations for speechgate.
package ledger

import (
	"context"
	"sync"

	"github.com/ineyio/speechgate"
)

// MemoryStore is an in-memory LedgerStore. State is lost on restart.
// LoadErr and SaveErr inject failures for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	state   speechgate.LedgerState
	saves   int
	loadErr error
	saveErr error
}

var _ speechgate.LedgerStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding state.
func NewMemoryStore(state speechgate.LedgerState) *MemoryStore {
	return &MemoryStore{state: state}
}

// Load returns the held state.
func (s *MemoryStore) Load(_ context.Context) (speechgate.LedgerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.loadErr != nil {
		return speechgate.LedgerState{}, s.loadErr
	}
	return s.state, nil
}

// Save replaces the held state.
func (s *MemoryStore) Save(_ context.Context, state speechgate.LedgerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	s.state = state
	s.saves++
	return nil
}

// State returns the last saved state.
func (s *MemoryStore) State() speechgate.LedgerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Saves returns the number of successful saves.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// SetLoadErr makes every Load fail with err (nil clears it).
func (s *MemoryStore) SetLoadErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// SetSaveErr makes every Save fail with err (nil clears it).
func (s *MemoryStore) SetSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}
