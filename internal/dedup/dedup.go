// Package dedup tracks which entry URLs have already been ingested.
package dedup

import "sync"

// Set is the in-memory index of known entry URLs.
//
// It is a derived view of storage: seed it from the persisted entries on
// start and admit URLs only after they have been written. Safe for concurrent
// use by parallel feed tasks.
type Set struct {
	mu   sync.RWMutex
	urls map[string]struct{}
}

func NewSet() *Set {
	return &Set{urls: make(map[string]struct{})}
}

// Seed adds every URL already present in storage.
func (s *Set) Seed(urls []string) {
	s.Admit(urls...)
}

// IsNew reports whether url has not been ingested yet.
func (s *Set) IsNew(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.urls[url]
	return !ok
}

// Admit records urls as ingested.
func (s *Set) Admit(urls ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range urls {
		s.urls[u] = struct{}{}
	}
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.urls)
}
