// internal/protocol/commands.go
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/boom/internal/apperr"
	"github.com/jason-s-yu/boom/internal/game"
)

// Inbound command types.
const (
	TypeCreateLobby   = "createLobby"
	TypeJoinLobby     = "joinLobby"
	TypeLeaveLobby    = "leaveLobby"
	TypeListLobbies   = "listLobbies"
	TypeStartGame     = "startGame"
	TypePlayCard      = "playCard"
	TypeDrawCard      = "drawCard"
	TypePassTurn      = "passTurn"
	TypeSetWildColor  = "setWildColor"
	TypeChallengeBoom = "challengeBoom"
	TypeHeartbeat     = "heartbeat"
)

// Command is one decoded client request.
type Command interface {
	CommandType() string
}

type CreateLobby struct {
	Name       string                 `json:"name"`
	MaxPlayers *int                   `json:"maxPlayers,omitempty"`
	Rules      map[string]interface{} `json:"rules,omitempty"`
}

type JoinLobby struct {
	LobbyID string `json:"lobbyId"`
}

type LeaveLobby struct{}
type ListLobbies struct{}
type StartGame struct{}

type PlayCard struct {
	Card game.Card `json:"card"`
}

type DrawCard struct{}
type PassTurn struct{}

type SetWildColor struct {
	Color game.Color `json:"color"`
}

type ChallengeBoom struct{}
type Heartbeat struct{}

func (CreateLobby) CommandType() string   { return TypeCreateLobby }
func (JoinLobby) CommandType() string     { return TypeJoinLobby }
func (LeaveLobby) CommandType() string    { return TypeLeaveLobby }
func (ListLobbies) CommandType() string   { return TypeListLobbies }
func (StartGame) CommandType() string     { return TypeStartGame }
func (PlayCard) CommandType() string      { return TypePlayCard }
func (DrawCard) CommandType() string      { return TypeDrawCard }
func (PassTurn) CommandType() string      { return TypePassTurn }
func (SetWildColor) CommandType() string  { return TypeSetWildColor }
func (ChallengeBoom) CommandType() string { return TypeChallengeBoom }
func (Heartbeat) CommandType() string     { return TypeHeartbeat }

// envelope is the wire shape of every frame in both directions.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses one inbound frame. Errors wrap apperr.ErrMalformedFrame or
// apperr.ErrUnknownCommand.
func Decode(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", apperr.ErrMalformedFrame)
	}

	var cmd Command
	switch env.Type {
	case TypeCreateLobby:
		c := CreateLobby{}
		if err := unmarshalPayload(env.Payload, &c); err != nil {
			return nil, err
		}
		cmd = c
	case TypeJoinLobby:
		c := JoinLobby{}
		if err := unmarshalPayload(env.Payload, &c); err != nil {
			return nil, err
		}
		if c.LobbyID == "" {
			return nil, fmt.Errorf("%w: lobbyId is required", apperr.ErrMalformedFrame)
		}
		cmd = c
	case TypePlayCard:
		c := PlayCard{}
		if err := unmarshalPayload(env.Payload, &c); err != nil {
			return nil, err
		}
		if c.Card.Type == "" {
			return nil, fmt.Errorf("%w: card is required", apperr.ErrMalformedFrame)
		}
		cmd = c
	case TypeSetWildColor:
		c := SetWildColor{}
		if err := unmarshalPayload(env.Payload, &c); err != nil {
			return nil, err
		}
		if c.Color == "" {
			return nil, fmt.Errorf("%w: color is required", apperr.ErrMalformedFrame)
		}
		cmd = c
	case TypeLeaveLobby:
		cmd = LeaveLobby{}
	case TypeListLobbies:
		cmd = ListLobbies{}
	case TypeStartGame:
		cmd = StartGame{}
	case TypeDrawCard:
		cmd = DrawCard{}
	case TypePassTurn:
		cmd = PassTurn{}
	case TypeChallengeBoom:
		cmd = ChallengeBoom{}
	case TypeHeartbeat:
		cmd = Heartbeat{}
	default:
		return nil, &UnknownCommandError{Type: env.Type}
	}
	return cmd, nil
}

func unmarshalPayload(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrMalformedFrame, err)
	}
	return nil
}

// UnknownCommandError keeps the offending type name for logs.
type UnknownCommandError struct {
	Type string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command type %q", e.Type)
}

func (e *UnknownCommandError) Unwrap() error { return apperr.ErrUnknownCommand }
