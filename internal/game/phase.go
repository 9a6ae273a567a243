// internal/game/phase.go
package game

import "fmt"

// Phase is the state of a game's action state machine.
type Phase string

const (
	PhaseDealing                   Phase = "dealing"
	PhaseAwaitingAction            Phase = "awaitingAction"
	PhaseAwaitingColor             Phase = "awaitingColor"
	PhaseAwaitingChallengeResponse Phase = "awaitingChallengeResponse"
	PhaseRoundEnd                  Phase = "roundEnd"
	PhaseGameOver                  Phase = "gameOver"
)

// Action is a player-initiated transition.
type Action string

const (
	ActionPlay      Action = "playCard"
	ActionDraw      Action = "drawCard"
	ActionPass      Action = "passTurn"
	ActionSetColor  Action = "setWildColor"
	ActionChallenge Action = "challengeBoom"
)

// turnBound actions may only come from the player whose turn it is.
var turnBound = map[Action]bool{
	ActionPlay:      true,
	ActionDraw:      true,
	ActionPass:      true,
	ActionSetColor:  true,
	ActionChallenge: false,
}

// accepts is the single table of which actions each phase allows. Phases not
// listed (dealing, the challenge resolution, round end, game over) are transient
// or terminal and accept nothing from players.
var accepts = map[Phase]map[Action]bool{
	PhaseAwaitingAction: {
		ActionPlay:      true,
		ActionDraw:      true,
		ActionPass:      true,
		ActionChallenge: true,
	},
	PhaseAwaitingColor: {
		ActionSetColor: true,
	},
}

// edges lists the legal phase changes.
var edges = map[Phase][]Phase{
	PhaseDealing:                   {PhaseAwaitingAction, PhaseGameOver},
	PhaseAwaitingAction:            {PhaseAwaitingColor, PhaseAwaitingChallengeResponse, PhaseRoundEnd, PhaseGameOver},
	PhaseAwaitingColor:             {PhaseAwaitingAction, PhaseRoundEnd, PhaseGameOver},
	PhaseAwaitingChallengeResponse: {PhaseAwaitingAction, PhaseRoundEnd, PhaseGameOver},
	PhaseRoundEnd:                  {PhaseDealing, PhaseGameOver},
	PhaseGameOver:                  nil,
}

// Accepts reports whether the phase allows the action.
func (p Phase) Accepts(a Action) bool {
	return accepts[p][a]
}

// CanEnter reports whether next is a legal successor of p.
func (p Phase) CanEnter(next Phase) bool {
	for _, e := range edges[p] {
		if e == next {
			return true
		}
	}
	return false
}

// enter moves the game to next. An illegal edge is a bug in this package, not
// a player error, so it panics.
func (g *Game) enter(next Phase) {
	if !g.phase.CanEnter(next) {
		panic(fmt.Sprintf("game %s: illegal phase change %s -> %s", g.ID, g.phase, next))
	}
	g.phase = next
}
