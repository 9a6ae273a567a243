// internal/game/challenge.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/boom/internal/apperr"
)

// Challenge is what a ChallengeRule sees when a Boom play is contested.
type Challenge struct {
	ChallengerID   string
	ChallengedID   string
	Eligible       bool // the Boom player held no other legal non-Boom card
	ChallengedHand []Card
	Top            Card
	Color          Color
}

// Verdict names the player who loses the challenge and how many cards they draw.
type Verdict struct {
	LoserID string
	Penalty int
}

// ChallengeRule decides a Boom challenge. It must be pure and return synchronously.
type ChallengeRule interface {
	Resolve(c Challenge) Verdict
}

// ChallengeRuleFunc adapts a plain function to ChallengeRule.
type ChallengeRuleFunc func(c Challenge) Verdict

func (f ChallengeRuleFunc) Resolve(c Challenge) Verdict { return f(c) }

// RevealRule is the default: the challenged player reveals their hand. A Boom
// played while holding another legal card loses; otherwise the challenger loses.
type RevealRule struct {
	Penalty int
}

func (r RevealRule) Resolve(c Challenge) Verdict {
	if !c.Eligible {
		return Verdict{LoserID: c.ChallengedID, Penalty: r.Penalty}
	}
	return Verdict{LoserID: c.ChallengerID, Penalty: r.Penalty}
}

// ChallengeBoom contests the Boom on top of the discard pile. Any active player
// other than the one who played it may challenge, in or out of turn. The
// challenge resolves immediately and never moves the turn.
func (g *Game) ChallengeBoom(challengerID string) (Verdict, error) {
	if err := g.Authorize(challengerID, ActionChallenge); err != nil {
		return Verdict{}, err
	}
	if g.boom == nil || g.boom.playerID == challengerID {
		return Verdict{}, apperr.ErrChallengeNotAllowed
	}
	challenged := g.player(g.boom.playerID)
	if challenged == nil || !challenged.Active {
		g.boom = nil
		return Verdict{}, apperr.ErrChallengeNotAllowed
	}

	g.enter(PhaseAwaitingChallengeResponse)
	verdict := g.challenge.Resolve(Challenge{
		ChallengerID:   challengerID,
		ChallengedID:   challenged.ID,
		Eligible:       g.boom.eligible,
		ChallengedHand: append([]Card(nil), challenged.Hand...),
		Top:            g.discard[len(g.discard)-1],
		Color:          g.currentColor,
	})
	g.boom = nil

	loser := g.player(verdict.LoserID)
	if loser == nil || !loser.Active {
		// a rule naming nobody is a no-op challenge
		g.enter(PhaseAwaitingAction)
		return Verdict{}, nil
	}
	if verdict.Penalty > g.drawable() {
		g.abort()
		return verdict, apperr.ErrDeckExhausted
	}
	g.mustDraw(loser, verdict.Penalty)
	g.enter(PhaseAwaitingAction)
	g.lastAction = fmt.Sprintf("%s challenged %s's boom; %s draws %d",
		g.player(challengerID).Name, challenged.Name, loser.Name, verdict.Penalty)
	return verdict, nil
}

// Challengeable reports whether the card on top of the discard pile is a Boom
// that may still be contested.
func (g *Game) Challengeable() bool {
	return g.boom != nil
}
