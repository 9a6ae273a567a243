package session

import (
	"strings"
	"sync"
	"time"
)

type turnTimer struct {
	turnID int
	t      *time.Timer
}

// timerSet holds the idle-turn timer of each game and the grace timer of each
// disconnected player. After stopAll nothing new is armed.
type timerSet struct {
	mu      sync.Mutex
	turns   map[string]turnTimer   // gameID
	graces  map[string]*time.Timer // gameID/playerID
	stopped bool
}

func newTimerSet() *timerSet {
	return &timerSet{
		turns:  make(map[string]turnTimer),
		graces: make(map[string]*time.Timer),
	}
}

func graceKey(gameID, playerID string) string {
	return gameID + "/" + playerID
}

// armTurn starts the idle timer for turnID, replacing the timer of any earlier
// turn. Arming the current turn again, or an older one, is a no-op.
func (s *timerSet) armTurn(gameID string, turnID int, d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if cur, ok := s.turns[gameID]; ok {
		if cur.turnID >= turnID {
			return
		}
		cur.t.Stop()
	}
	s.turns[gameID] = turnTimer{turnID: turnID, t: time.AfterFunc(d, fire)}
}

func (s *timerSet) armGrace(gameID, playerID string, d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	key := graceKey(gameID, playerID)
	if t, ok := s.graces[key]; ok {
		t.Stop()
	}
	s.graces[key] = time.AfterFunc(d, fire)
}

func (s *timerSet) clearGrace(gameID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := graceKey(gameID, playerID)
	if t, ok := s.graces[key]; ok {
		t.Stop()
		delete(s.graces, key)
	}
}

// cancelGame stops every timer belonging to gameID.
func (s *timerSet) cancelGame(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.turns[gameID]; ok {
		cur.t.Stop()
		delete(s.turns, gameID)
	}
	prefix := gameID + "/"
	for key, t := range s.graces {
		if strings.HasPrefix(key, prefix) {
			t.Stop()
			delete(s.graces, key)
		}
	}
}

func (s *timerSet) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, cur := range s.turns {
		cur.t.Stop()
		delete(s.turns, id)
	}
	for key, t := range s.graces {
		t.Stop()
		delete(s.graces, key)
	}
}

func (s *timerSet) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns) + len(s.graces)
}
