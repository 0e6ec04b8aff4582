package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrStateNotFound is returned when no persisted run state exists yet.
var ErrStateNotFound = errors.New("pipeline engine: state not found")

// StateStore persists pipeline run state snapshots.
type StateStore interface {
	Load() (State, error)
	Save(State) error
}

// Repository stores engine state as JSON inside the project state directory.
type Repository struct {
	path string
}

// NewRepository creates a repository rooted at stateDir.
func NewRepository(stateDir string) *Repository {
	return &Repository{path: filepath.Join(stateDir, "run.json")}
}

// Load reads the persisted state if present.
func (r *Repository) Load() (State, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, ErrStateNotFound
		}
		return State{}, fmt.Errorf("pipeline engine: read state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("pipeline engine: decode state: %w", err)
	}
	return state, nil
}

// Save writes the engine state to disk.
func (r *Repository) Save(state State) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("pipeline engine: ensure state dir: %w", err)
	}
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline engine: encode state: %w", err)
	}
	return os.WriteFile(r.path, append(encoded, '\n'), 0o644)
}

// MemoryStore keeps state in memory; used by tests and one-shot runs.
type MemoryStore struct {
	state State
	saved bool
}

// Load returns the stored state or ErrStateNotFound.
func (m *MemoryStore) Load() (State, error) {
	if !m.saved {
		return State{}, ErrStateNotFound
	}
	return m.state, nil
}

// Save stores the state.
func (m *MemoryStore) Save(state State) error {
	m.state = state
	m.saved = true
	return nil
}
