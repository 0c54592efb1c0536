// Package report builds incident records, submits them to the remote
// tracker, and maintains the local incident log.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Incident is the locally persisted record. Severity is remote-only
// metadata and deliberately absent here; the local log carries what the
// station itself attests to. RemoteID is attached after the tracker call
// returns, and is null for incidents reported while offline.
type Incident struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	RemoteID    *int   `json:"remote_id,omitempty"`
}

// LogStore is the append-only (in memory) incident log, persisted as a
// single JSON array rewritten on every save.
type LogStore struct {
	mu        sync.Mutex
	path      string
	incidents []Incident
}

// NewLogStore loads any existing log from path. A missing or unreadable
// file starts an empty log; the station must come up regardless.
func NewLogStore(path string) *LogStore {
	s := &LogStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s.incidents); err != nil {
		s.incidents = nil
	}
	return s
}

// Append adds an incident and rewrites the log file. The in-memory record
// is kept even when the save fails; the error is for reporting only.
func (s *LogStore) Append(inc Incident) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.incidents = append(s.incidents, inc)
	localID := len(s.incidents) - 1

	data, err := json.Marshal(s.incidents)
	if err != nil {
		return localID, fmt.Errorf("encode incident log: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return localID, fmt.Errorf("save incident log: %w", err)
	}
	return localID, nil
}

// All returns a copy of the log, oldest first. The slice index is the
// incident's local id.
func (s *LogStore) All() []Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Incident, len(s.incidents))
	copy(out, s.incidents)
	return out
}

// Len returns the number of recorded incidents.
func (s *LogStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.incidents)
}
