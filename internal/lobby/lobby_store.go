// internal/lobby/lobby_store.go
package lobby

import (
	"sort"
	"sync"
)

// Store holds active lobbies in memory. The store lock guards only the map;
// each lobby's own Mu guards its contents.
type Store struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby
}

// NewStore initializes an empty Store.
func NewStore() *Store {
	return &Store{
		lobbies: make(map[string]*Lobby),
	}
}

// Add stores a lobby. An existing lobby with the same ID is kept.
func (s *Store) Add(l *Lobby) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lobbies[l.ID]; exists {
		return false
	}
	s.lobbies[l.ID] = l
	return true
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
}

func (s *Store) Get(id string) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	return l, ok
}

// All returns the lobbies oldest first.
func (s *Store) All() []*Lobby {
	s.mu.Lock()
	out := make([]*Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, l)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobbies)
}
