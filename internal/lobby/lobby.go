// internal/lobby/lobby.go
package lobby

import (
	"sync"
	"time"

	"github.com/jason-s-yu/boom/internal/game"
)

// Status of a lobby.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusInGame  Status = "inGame"
)

// Member is one connection seated in a lobby.
type Member struct {
	ConnID string `json:"connectionId"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Lobby is a waiting room. Members are kept in join order, which is also the
// seating order of the game started from it.
type Lobby struct {
	ID         string
	Name       string
	HostID     string
	Members    []Member
	Status     Status
	MaxPlayers int
	GameID     string
	Rules      game.HouseRules
	CreatedAt  time.Time

	// deleted is set under Mu once the last member leaves, so a join racing
	// the removal from the store sees the lobby as gone.
	deleted bool

	Mu sync.Mutex
}

// State is an immutable snapshot of a lobby.
type State struct {
	LobbyID    string          `json:"lobbyId"`
	Name       string          `json:"name"`
	HostID     string          `json:"hostId"`
	Members    []Member        `json:"members"`
	Status     Status          `json:"status"`
	MaxPlayers int             `json:"maxPlayers"`
	GameID     string          `json:"gameId,omitempty"`
	Rules      game.HouseRules `json:"rules"`
}

// Summary is what the lobby browser shows. It carries no member identities.
type Summary struct {
	LobbyID     string `json:"lobbyId"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}

// stateUnsafe snapshots the lobby. Assumes lock is held.
func (l *Lobby) stateUnsafe() State {
	return State{
		LobbyID:    l.ID,
		Name:       l.Name,
		HostID:     l.HostID,
		Members:    append([]Member(nil), l.Members...),
		Status:     l.Status,
		MaxPlayers: l.MaxPlayers,
		GameID:     l.GameID,
		Rules:      l.Rules,
	}
}

func (l *Lobby) summaryUnsafe() Summary {
	return Summary{
		LobbyID:     l.ID,
		Name:        l.Name,
		PlayerCount: len(l.Members),
		MaxPlayers:  l.MaxPlayers,
	}
}

func (l *Lobby) indexUnsafe(connID string) int {
	for i, m := range l.Members {
		if m.ConnID == connID {
			return i
		}
	}
	return -1
}

// removeMemberUnsafe drops connID and hands the host seat to the earliest
// remaining member if needed. Reports whether the lobby is now empty.
// Assumes lock is held.
func (l *Lobby) removeMemberUnsafe(connID string) (removed, empty bool) {
	i := l.indexUnsafe(connID)
	if i < 0 {
		return false, len(l.Members) == 0
	}
	l.Members = append(l.Members[:i], l.Members[i+1:]...)
	if len(l.Members) == 0 {
		l.HostID = ""
		l.deleted = true
		return true, true
	}
	if l.HostID == connID {
		l.HostID = l.Members[0].ConnID
	}
	return true, false
}
