package emulate

import "sync"

// Set is a concurrency-safe set of canonical names. Mark and Clear are
// test-and-set: each reports whether it changed membership.
type Set struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func NewSet() *Set {
	return &Set{names: make(map[string]struct{})}
}

// Mark adds name and reports whether it was absent.
func (s *Set) Mark(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; ok {
		return false
	}
	s.names[name] = struct{}{}
	return true
}

func (s *Set) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.names[name]
	return ok
}

// Clear removes name and reports whether it was present.
func (s *Set) Clear(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; !ok {
		return false
	}
	delete(s.names, name)
	return true
}

// Consume reports whether name is marked, clearing it when up is true.
// The check and the clear happen under one lock so two hook threads cannot
// both observe the same synthetic release.
func (s *Set) Consume(name string, up bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; !ok {
		return false
	}
	if up {
		delete(s.names, name)
	}
	return true
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}
