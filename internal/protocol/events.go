// internal/protocol/events.go
package protocol

import (
	"encoding/json"

	"github.com/jason-s-yu/boom/internal/apperr"
	"github.com/jason-s-yu/boom/internal/game"
	"github.com/jason-s-yu/boom/internal/lobby"
)

// Outbound event types.
const (
	TypeConnectionEstablished = "connectionEstablished"
	TypeError                 = "error"
	TypeInfo                  = "info"
	TypeLobbyStateUpdate      = "lobbyStateUpdate"
	TypeLobbyListUpdate       = "lobbyListUpdate"
	TypeGameStarted           = "gameStarted"
	TypeGameStateUpdate       = "gameStateUpdate"
	TypeGameOver              = "gameOver"
	TypeHeartbeatAck          = "heartbeatAck"
)

// Event is one server-to-client message.
type Event interface {
	EventType() string
}

// Personalized events carry data for several recipients and must be narrowed
// to one connection before they are encoded.
type Personalized interface {
	Event
	For(connID string) Event
}

type ConnectionEstablished struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Name         string `json:"name"`
}

type Error struct {
	Message string      `json:"message"`
	Code    apperr.Code `json:"code"`
}

// ErrorFrom builds the client-facing Error event for err.
func ErrorFrom(err error) Error {
	return Error{Message: apperr.MessageOf(err), Code: apperr.CodeOf(err)}
}

type Info struct {
	Message string `json:"message"`
}

type LobbyStateUpdate struct {
	lobby.State
}

type LobbyListUpdate struct {
	Lobbies []lobby.Summary `json:"lobbies"`
}

type GameStarted struct {
	GameID      string           `json:"gameId"`
	PublicState game.PublicState `json:"publicState"`
	YourHand    []game.Card      `json:"yourHand"`

	hands map[string][]game.Card
}

type GameStateUpdate struct {
	PublicState game.PublicState `json:"publicState"`
	YourHand    []game.Card      `json:"yourHand"`

	hands map[string][]game.Card
}

type GameOver struct {
	GameID      string         `json:"gameId"`
	WinnerID    string         `json:"winnerId"`
	FinalScores map[string]int `json:"finalScores"`
	Reason      string         `json:"reason,omitempty"`
}

type HeartbeatAck struct {
	ServerTime int64 `json:"serverTime"`
}

// NewGameStarted carries every hand; fan-out narrows it per recipient.
func NewGameStarted(ps game.PublicState, hands map[string][]game.Card) GameStarted {
	return GameStarted{GameID: ps.GameID, PublicState: ps, hands: hands}
}

// NewGameStateUpdate carries every hand; fan-out narrows it per recipient.
func NewGameStateUpdate(ps game.PublicState, hands map[string][]game.Card) GameStateUpdate {
	return GameStateUpdate{PublicState: ps, hands: hands}
}

func (e GameStarted) For(connID string) Event {
	out := e
	out.YourHand = handFor(e.hands, connID)
	out.hands = nil
	return out
}

func (e GameStateUpdate) For(connID string) Event {
	out := e
	out.YourHand = handFor(e.hands, connID)
	out.hands = nil
	return out
}

func handFor(hands map[string][]game.Card, connID string) []game.Card {
	if h, ok := hands[connID]; ok && h != nil {
		return h
	}
	return []game.Card{}
}

func (ConnectionEstablished) EventType() string { return TypeConnectionEstablished }
func (Error) EventType() string                 { return TypeError }
func (Info) EventType() string                  { return TypeInfo }
func (LobbyStateUpdate) EventType() string      { return TypeLobbyStateUpdate }
func (LobbyListUpdate) EventType() string       { return TypeLobbyListUpdate }
func (GameStarted) EventType() string           { return TypeGameStarted }
func (GameStateUpdate) EventType() string       { return TypeGameStateUpdate }
func (GameOver) EventType() string              { return TypeGameOver }
func (HeartbeatAck) EventType() string          { return TypeHeartbeatAck }

// Encode serializes ev into a wire frame.
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: ev.EventType(), Payload: payload})
}
