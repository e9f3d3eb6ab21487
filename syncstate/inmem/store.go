package inmem

import (
	"sync"

	"github.com/shulebook/shulebook-go/syncstate"
)

var _ syncstate.Store = (*Store)(nil)

// Store is the in-memory session-scoped store. One instance per client
// session; dropping the instance discards all records.
type Store struct {
	mu      sync.RWMutex
	records map[string]string
}

func NewStore() *Store {
	return &Store{records: make(map[string]string)}
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.records[key]
	return value, ok
}

func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = value
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]string)
}
