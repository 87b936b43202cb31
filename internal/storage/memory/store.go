// Package memory provides an in-process state store. State survives for
// the lifetime of the process only.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bookworm-labs/bookchat/internal/domain"
)

// StateStore implements domain.StateStore backed by process memory.
type StateStore struct {
	mu       sync.RWMutex
	sessions []byte // JSON-serialized session collection, nil when unset
	current  string
	isOpen   bool
}

// NewStateStore creates an empty in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{}
}

func (s *StateStore) Load(_ context.Context) (*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sessions == nil {
		return nil, nil
	}

	var sessions []domain.ChatSession
	if err := json.Unmarshal(s.sessions, &sessions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}

	return &domain.State{
		Sessions:  sessions,
		CurrentID: s.current,
		IsOpen:    s.isOpen,
	}, nil
}

func (s *StateStore) Save(_ context.Context, state *domain.State) error {
	data, err := json.Marshal(state.Sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = data
	s.current = state.CurrentID
	s.isOpen = state.IsOpen
	return nil
}

func (s *StateStore) Close() error {
	return nil
}
