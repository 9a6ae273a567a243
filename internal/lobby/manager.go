// internal/lobby/manager.go
package lobby

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/boom/internal/apperr"
	"github.com/jason-s-yu/boom/internal/game"
)

const maxNameLen = 40

// Limits bound lobby sizes.
type Limits struct {
	MinPlayers     int
	MaxPlayers     int
	DefaultPlayers int
}

// Manager owns lobby lifecycle. It never does I/O; callers broadcast the
// returned snapshots after every call.
type Manager struct {
	store  *Store
	limits Limits
	rules  game.HouseRules

	mu       sync.Mutex
	memberOf map[string]string // connID -> lobbyID
}

// NewManager builds a manager. rules are the defaults every new lobby starts from.
func NewManager(limits Limits, rules game.HouseRules) *Manager {
	if limits.MinPlayers < game.MinSeats {
		limits.MinPlayers = game.MinSeats
	}
	if limits.MaxPlayers <= 0 || limits.MaxPlayers > game.MaxSeats {
		limits.MaxPlayers = game.MaxSeats
	}
	if limits.DefaultPlayers < limits.MinPlayers || limits.DefaultPlayers > limits.MaxPlayers {
		limits.DefaultPlayers = limits.MinPlayers
	}
	return &Manager{
		store:    NewStore(),
		limits:   limits,
		rules:    rules,
		memberOf: make(map[string]string),
	}
}

// CreateOptions are the optional parts of a create request.
type CreateOptions struct {
	Name       string
	MaxPlayers *int
	Rules      map[string]interface{}
}

// Create opens a lobby with host as its only member.
func (m *Manager) Create(host Member, opts CreateOptions) (State, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = fmt.Sprintf("%s's table", host.Name)
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return State{}, apperr.ErrInvalidName
	}
	maxPlayers := m.limits.DefaultPlayers
	if opts.MaxPlayers != nil {
		maxPlayers = *opts.MaxPlayers
	}
	if maxPlayers < m.limits.MinPlayers || maxPlayers > m.limits.MaxPlayers {
		return State{}, fmt.Errorf("maxPlayers must be %d-%d: %w", m.limits.MinPlayers, m.limits.MaxPlayers, apperr.ErrInvalidMaxPlayers)
	}
	rules, err := game.ParseRules(opts.Rules, m.rules)
	if err != nil {
		return State{}, apperr.New(apperr.CodeMalformedFrame, err.Error())
	}
	if err := rules.CheckDeal(maxPlayers); err != nil {
		return State{}, err
	}

	l := &Lobby{
		ID:         uuid.NewString(),
		Name:       name,
		HostID:     host.ConnID,
		Members:    []Member{host},
		Status:     StatusWaiting,
		MaxPlayers: maxPlayers,
		Rules:      rules,
		CreatedAt:  time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, in := m.memberOf[host.ConnID]; in {
		return State{}, apperr.ErrAlreadyInLobby
	}
	m.store.Add(l)
	m.memberOf[host.ConnID] = l.ID
	return l.stateUnsafe(), nil
}

// Join seats member in lobbyID.
func (m *Manager) Join(member Member, lobbyID string) (State, error) {
	m.mu.Lock()
	if _, in := m.memberOf[member.ConnID]; in {
		m.mu.Unlock()
		return State{}, apperr.ErrAlreadyInLobby
	}
	l, ok := m.store.Get(lobbyID)
	if !ok {
		m.mu.Unlock()
		return State{}, apperr.ErrNotFound
	}
	// reserve the membership so a second join by the same connection fails fast
	m.memberOf[member.ConnID] = lobbyID
	m.mu.Unlock()

	l.Mu.Lock()
	var err error
	switch {
	case l.deleted:
		err = apperr.ErrNotFound
	case l.Status != StatusWaiting:
		err = apperr.ErrAlreadyInGame
	case len(l.Members) >= l.MaxPlayers:
		err = apperr.ErrLobbyFull
	default:
		l.Members = append(l.Members, member)
	}
	st := l.stateUnsafe()
	l.Mu.Unlock()

	if err != nil {
		m.release(member.ConnID, lobbyID)
		return State{}, err
	}
	return st, nil
}

// Leave removes connID from its lobby. The returned bool reports that the
// lobby was deleted because it emptied.
func (m *Manager) Leave(connID string) (State, bool, error) {
	m.mu.Lock()
	lobbyID, in := m.memberOf[connID]
	m.mu.Unlock()
	if !in {
		return State{}, false, apperr.ErrNotInLobby
	}
	l, ok := m.store.Get(lobbyID)
	if !ok {
		m.release(connID, lobbyID)
		return State{}, false, apperr.ErrNotInLobby
	}

	l.Mu.Lock()
	removed, empty := l.removeMemberUnsafe(connID)
	st := l.stateUnsafe()
	l.Mu.Unlock()

	m.mu.Lock()
	if m.memberOf[connID] == lobbyID {
		delete(m.memberOf, connID)
	}
	if empty {
		m.store.Delete(lobbyID)
	}
	m.mu.Unlock()

	if !removed {
		return State{}, false, apperr.ErrNotInLobby
	}
	return st, empty, nil
}

// Remove is the departure path for a closed connection. It is Leave without
// the NotInLobby error; ok is false when the connection was in no lobby.
func (m *Manager) Remove(connID string) (st State, deleted, ok bool) {
	st, deleted, err := m.Leave(connID)
	return st, deleted, err == nil
}

// StartGame validates the host's request and calls start under the lobby lock
// to build the game. The lobby flips to InGame only if start succeeds, so a
// failed start leaves it untouched.
func (m *Manager) StartGame(connID string, start func(State) (gameID string, err error)) (State, error) {
	l, err := m.lobbyOf(connID)
	if err != nil {
		return State{}, err
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()
	switch {
	case l.deleted:
		return State{}, apperr.ErrNotInLobby
	case l.HostID != connID:
		return State{}, apperr.ErrNotHost
	case l.Status != StatusWaiting:
		return State{}, apperr.ErrAlreadyStarted
	case len(l.Members) < m.limits.MinPlayers:
		return State{}, apperr.ErrNotEnoughPlayers
	}

	gameID, err := start(l.stateUnsafe())
	if err != nil {
		return State{}, err
	}
	l.Status = StatusInGame
	l.GameID = gameID
	return l.stateUnsafe(), nil
}

// EndGame returns the lobby to Waiting if gameID is still its game. ok is false
// when the lobby is gone or already moved on.
func (m *Manager) EndGame(lobbyID, gameID string) (State, bool) {
	l, found := m.store.Get(lobbyID)
	if !found {
		return State{}, false
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.deleted || l.GameID != gameID {
		return State{}, false
	}
	l.Status = StatusWaiting
	l.GameID = ""
	return l.stateUnsafe(), true
}

// ListWaiting returns the lobbies open for joining, oldest first.
func (m *Manager) ListWaiting() []Summary {
	out := []Summary{}
	for _, l := range m.store.All() {
		l.Mu.Lock()
		if !l.deleted && l.Status == StatusWaiting {
			out = append(out, l.summaryUnsafe())
		}
		l.Mu.Unlock()
	}
	return out
}

// Get snapshots one lobby.
func (m *Manager) Get(lobbyID string) (State, bool) {
	l, ok := m.store.Get(lobbyID)
	if !ok {
		return State{}, false
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.deleted {
		return State{}, false
	}
	return l.stateUnsafe(), true
}

// LobbyOf returns the lobby connID belongs to.
func (m *Manager) LobbyOf(connID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.memberOf[connID]
	return id, ok
}

// Len is the number of open lobbies.
func (m *Manager) Len() int {
	return m.store.Len()
}

func (m *Manager) lobbyOf(connID string) (*Lobby, error) {
	m.mu.Lock()
	lobbyID, in := m.memberOf[connID]
	m.mu.Unlock()
	if !in {
		return nil, apperr.ErrNotInLobby
	}
	l, ok := m.store.Get(lobbyID)
	if !ok {
		return nil, apperr.ErrNotInLobby
	}
	return l, nil
}

func (m *Manager) release(connID, lobbyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.memberOf[connID] == lobbyID {
		delete(m.memberOf, connID)
	}
}
