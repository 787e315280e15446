package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State tracks progress for resumable runs: which sources finished and which
// tickets were already reconstructed. A State without a path lives in memory
// only.
type State struct {
	StartedAt        time.Time `json:"started_at"`
	LastSavedAt      time.Time `json:"last_saved_at"`
	SourcesProcessed []string  `json:"sources_processed"`
	TicketsProcessed []string  `json:"tickets_processed"`
	PairsProduced    int       `json:"pairs_produced"`
	Errors           []string  `json:"errors"`

	path    string
	sources map[string]bool
	tickets map[string]bool
}

// NewState returns an empty in-memory state.
func NewState() *State {
	return &State{
		StartedAt: time.Now().UTC(),
		sources:   make(map[string]bool),
		tickets:   make(map[string]bool),
	}
}

// LoadState loads the state at path, or creates a new one. An empty path
// gives an in-memory state.
func LoadState(path string) (*State, error) {
	if path == "" {
		return NewState(), nil
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			s := NewState()
			s.path = p
			return s, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	s := NewState()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	for _, name := range s.SourcesProcessed {
		s.sources[name] = true
	}
	for _, id := range s.TicketsProcessed {
		s.tickets[id] = true
	}
	return s, nil
}

// Path returns where the state is saved, or "" for an in-memory state.
func (s *State) Path() string { return s.path }

// Save persists the state to disk. It is a no-op for an in-memory state.
func (s *State) Save() error {
	s.LastSavedAt = time.Now().UTC()
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

func (s *State) SourceDone(name string) bool { return s.sources[name] }

func (s *State) MarkSource(name string) {
	if s.sources[name] {
		return
	}
	s.sources[name] = true
	s.SourcesProcessed = append(s.SourcesProcessed, name)
}

func (s *State) TicketDone(id string) bool { return s.tickets[id] }

func (s *State) MarkTicket(id string) {
	if s.tickets[id] {
		return
	}
	s.tickets[id] = true
	s.TicketsProcessed = append(s.TicketsProcessed, id)
}

// AddError records a processing error.
func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
