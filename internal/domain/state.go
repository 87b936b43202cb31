package domain

import "context"

// State is the full persisted widget state: the session collection, the
// current-session pointer, and the open/closed flag. All three are written
// together on every state change, last writer wins.
type State struct {
	Sessions  []ChatSession `json:"sessions"`
	CurrentID string        `json:"current_id"`
	IsOpen    bool          `json:"is_open"`
}

// StateStore defines the interface for widget state persistence.
// Load returns (nil, nil) when no state has been persisted yet.
type StateStore interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
	Close() error
}
