// internal/apperr/apperr.go
package apperr

import "errors"

// Code is the machine-readable kind of a failure. It is what clients see in the
// "code" field of an error event.
type Code string

const (
	CodeInternal            Code = "internal"
	CodeMalformedFrame      Code = "malformedFrame"
	CodeUnknownCommand      Code = "unknownCommand"
	CodeDraining            Code = "draining"
	CodeNotFound            Code = "notFound"
	CodeLobbyFull           Code = "lobbyFull"
	CodeAlreadyInLobby      Code = "alreadyInLobby"
	CodeAlreadyInGame       Code = "alreadyInGame"
	CodeNotInLobby          Code = "notInLobby"
	CodeNotHost             Code = "notHost"
	CodeAlreadyStarted      Code = "alreadyStarted"
	CodeNotEnoughPlayers    Code = "notEnoughPlayers"
	CodeTooManyPlayers      Code = "tooManyPlayers"
	CodeInvalidRules        Code = "invalidRules"
	CodeInvalidMaxPlayers   Code = "invalidMaxPlayers"
	CodeInvalidName         Code = "invalidName"
	CodeNotInGame           Code = "notInGame"
	CodeNotYourTurn         Code = "notYourTurn"
	CodeInvalidCard         Code = "invalidCard"
	CodeInvalidColor        Code = "invalidColor"
	CodeInvalidPhase        Code = "invalidPhase"
	CodeAlreadyDrawn        Code = "alreadyDrawn"
	CodeMustDrawFirst       Code = "mustDrawFirst"
	CodeChallengeNotAllowed Code = "challengeNotAllowed"
	CodeDeckExhausted       Code = "deckExhausted"
)

// Error is a typed failure with a user-facing message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an *Error. Sentinels below are compared by identity with errors.Is.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

var (
	ErrMalformedFrame      = New(CodeMalformedFrame, "malformed frame")
	ErrUnknownCommand      = New(CodeUnknownCommand, "unknown command type")
	ErrDraining            = New(CodeDraining, "server is shutting down")
	ErrNotFound            = New(CodeNotFound, "lobby not found")
	ErrLobbyFull           = New(CodeLobbyFull, "lobby is full")
	ErrAlreadyInLobby      = New(CodeAlreadyInLobby, "already in a lobby")
	ErrAlreadyInGame       = New(CodeAlreadyInGame, "lobby already has a game in progress")
	ErrNotInLobby          = New(CodeNotInLobby, "not in a lobby")
	ErrNotHost             = New(CodeNotHost, "only the host can do that")
	ErrAlreadyStarted      = New(CodeAlreadyStarted, "game already started")
	ErrNotEnoughPlayers    = New(CodeNotEnoughPlayers, "not enough players to start")
	ErrTooManyPlayers      = New(CodeTooManyPlayers, "too many players for one game")
	ErrInvalidRules        = New(CodeInvalidRules, "house rules do not fit this table")
	ErrInvalidMaxPlayers   = New(CodeInvalidMaxPlayers, "maxPlayers out of range")
	ErrInvalidName         = New(CodeInvalidName, "invalid lobby name")
	ErrNotInGame           = New(CodeNotInGame, "not in a game")
	ErrNotYourTurn         = New(CodeNotYourTurn, "it is not your turn")
	ErrInvalidCard         = New(CodeInvalidCard, "that card cannot be played")
	ErrInvalidColor        = New(CodeInvalidColor, "invalid color")
	ErrInvalidPhase        = New(CodeInvalidPhase, "action not allowed right now")
	ErrAlreadyDrawn        = New(CodeAlreadyDrawn, "already drew this turn")
	ErrMustDrawFirst       = New(CodeMustDrawFirst, "draw a card before passing")
	ErrChallengeNotAllowed = New(CodeChallengeNotAllowed, "nothing to challenge")
	ErrDeckExhausted       = New(CodeDeckExhausted, "deck and discard pile are both empty")
)

// CodeOf returns the code carried by err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the user-facing message for err. Foreign errors are not
// leaked to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
