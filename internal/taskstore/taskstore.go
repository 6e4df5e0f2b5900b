// Package taskstore tracks enhancement options per conversion task. Options
// are set once when a request is accepted and consumed exactly once when the
// response is prepared.
package taskstore

import (
	"sync"

	"github.com/MeKo-Tech/docrefine/internal/enhance"
)

// Store is a mutex-guarded map from task id to enhancement options. Safe for
// concurrent use across tasks.
type Store struct {
	mu   sync.Mutex
	opts map[string]enhance.Options
}

// New creates an empty store.
func New() *Store {
	return &Store{opts: make(map[string]enhance.Options)}
}

// Set records the options for a task.
func (s *Store) Set(taskID string, o enhance.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts[taskID] = o
}

// Get returns the options for a task without removing them.
func (s *Store) Get(taskID string) (enhance.Options, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opts[taskID]
	return o, ok
}

// Take returns and removes the options for a task. Response preparation uses
// this for the consume-once discipline.
func (s *Store) Take(taskID string) (enhance.Options, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opts[taskID]
	if ok {
		delete(s.opts, taskID)
	}
	return o, ok
}

// Remove discards the options for a task if present.
func (s *Store) Remove(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.opts, taskID)
}

// Clear drops all stored options.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = make(map[string]enhance.Options)
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.opts)
}
