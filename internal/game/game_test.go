// internal/game/game_test.go
package game

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/jason-s-yu/boom/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeats(n int) []Seat {
	seats := make([]Seat, n)
	for i := range seats {
		seats[i] = Seat{
			PlayerID: fmt.Sprintf("p%d", i),
			UserID:   fmt.Sprintf("u%d", i),
			Name:     fmt.Sprintf("Player %d", i),
		}
	}
	return seats
}

// setupTestGame deals a seeded game with n players.
func setupTestGame(t *testing.T, n int, rules HouseRules, opts ...Option) *Game {
	t.Helper()
	opts = append([]Option{WithRand(rand.New(rand.NewSource(42)))}, opts...)
	g, err := New("g1", "l1", testSeats(n), rules, opts...)
	require.NoError(t, err)
	require.NoError(t, g.CheckConservation())
	return g
}

// take removes one copy of card from wherever it is outside the discard top.
func take(t *testing.T, g *Game, card Card) {
	t.Helper()
	for i, c := range g.deck {
		if c == card {
			g.deck = append(g.deck[:i], g.deck[i+1:]...)
			return
		}
	}
	for i := 0; i < len(g.discard)-1; i++ {
		if g.discard[i] == card {
			g.discard = append(g.discard[:i], g.discard[i+1:]...)
			return
		}
	}
	for _, p := range g.players {
		for i, c := range p.Hand {
			if c == card {
				p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
				return
			}
		}
	}
	t.Fatalf("card %s not available", card)
}

// setHand returns the player's hand to the deck and gives them exactly cards.
func setHand(t *testing.T, g *Game, playerID string, cards ...Card) {
	t.Helper()
	p := g.player(playerID)
	require.NotNil(t, p)
	g.deck = append(g.deck, p.Hand...)
	p.Hand = nil
	for _, c := range cards {
		take(t, g, c)
		p.Hand = append(p.Hand, c)
	}
	require.NoError(t, g.CheckConservation())
}

// setTop puts card on the discard pile and makes its color current.
func setTop(t *testing.T, g *Game, card Card) {
	t.Helper()
	take(t, g, card)
	g.discard = append(g.discard, card)
	g.currentColor = card.Color
	require.NoError(t, g.CheckConservation())
}

func handSize(g *Game, id string) int {
	return len(g.player(id).Hand)
}

var (
	red3      = Card{Type: CardNumber, Value: 3, Color: Red}
	red5      = Card{Type: CardNumber, Value: 5, Color: Red}
	blue1     = Card{Type: CardNumber, Value: 1, Color: Blue}
	blue2     = Card{Type: CardNumber, Value: 2, Color: Blue}
	blue9     = Card{Type: CardNumber, Value: 9, Color: Blue}
	green5    = Card{Type: CardNumber, Value: 5, Color: Green}
	redSkip   = Card{Type: CardSkip, Color: Red}
	redRev    = Card{Type: CardReverse, Color: Red}
	redDraw2  = Card{Type: CardDrawTwo, Color: Red}
	redBoom   = Card{Type: CardBoom, Color: Red}
	wild      = Card{Type: CardWild}
	wildDraw4 = Card{Type: CardWildDrawFour}
)

func TestStandardDeck(t *testing.T) {
	deck := StandardDeck()
	require.Len(t, deck, 112)

	counts := map[CardType]int{}
	for _, c := range deck {
		require.NoError(t, c.Validate())
		counts[c.Type]++
	}
	assert.Equal(t, 76, counts[CardNumber])
	assert.Equal(t, 8, counts[CardSkip])
	assert.Equal(t, 8, counts[CardReverse])
	assert.Equal(t, 8, counts[CardDrawTwo])
	assert.Equal(t, 4, counts[CardBoom])
	assert.Equal(t, 4, counts[CardWild])
	assert.Equal(t, 4, counts[CardWildDrawFour])
}

func TestNewDealsHands(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())

	assert.Equal(t, PhaseAwaitingAction, g.Phase())
	assert.Equal(t, "p0", g.CurrentPlayerID())
	assert.Equal(t, 1, g.Round())
	for _, id := range []string{"p0", "p1"} {
		assert.Equal(t, 7, handSize(g, id))
	}

	ps := g.PublicState()
	require.Len(t, ps.DiscardPile, 1)
	assert.False(t, ps.DiscardTop.IsWild(), "first discard must not be wild")
	assert.Equal(t, ps.DiscardTop.Color, ps.CurrentColor)
	assert.Equal(t, 112-14-1, ps.DeckSize)
	assert.Len(t, ps.Players, 2)
}

func TestNewRejectsBadSeatCount(t *testing.T) {
	_, err := New("g", "l", testSeats(1), DefaultHouseRules())
	require.ErrorIs(t, err, apperr.ErrNotEnoughPlayers)

	_, err = New("g", "l", testSeats(11), DefaultHouseRules())
	require.ErrorIs(t, err, apperr.ErrTooManyPlayers)

	_, err = New("g", "l", testSeats(8), HouseRules{HandSize: 14})
	require.ErrorIs(t, err, apperr.ErrInvalidRules)
	assert.Equal(t, apperr.CodeInvalidRules, apperr.CodeOf(err))

	dup := testSeats(2)
	dup[1].PlayerID = dup[0].PlayerID
	_, err = New("g", "l", dup, DefaultHouseRules())
	require.Error(t, err)
}

func TestPlayNumberAdvancesTurn(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", red3, blue1)
	turn := g.TurnID()

	require.NoError(t, g.PlayCard("p0", red3))
	assert.Equal(t, "p1", g.CurrentPlayerID())
	assert.Equal(t, red3, g.PublicState().DiscardTop)
	assert.Equal(t, turn+1, g.TurnID())
	assert.Equal(t, 1, handSize(g, "p0"))

	// an out-of-turn play is rejected before the card is looked at
	hand := g.player("p2").Hand
	err := g.PlayCard("p2", hand[0])
	assert.ErrorIs(t, err, apperr.ErrNotYourTurn)
	assert.NoError(t, g.CheckConservation())
}

func TestPlayMatchingValueOtherColor(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", green5, blue1)

	require.NoError(t, g.PlayCard("p0", green5))
	assert.Equal(t, Green, g.CurrentColor())
}

func TestPlayIllegalCard(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", blue1, blue2)

	err := g.PlayCard("p0", blue1)
	assert.ErrorIs(t, err, apperr.ErrInvalidCard)

	// not in hand
	err = g.PlayCard("p0", red3)
	assert.ErrorIs(t, err, apperr.ErrInvalidCard)

	err = g.PlayCard("p0", Card{Type: "joker"})
	assert.Equal(t, apperr.CodeInvalidCard, apperr.CodeOf(err))

	assert.Equal(t, "p0", g.CurrentPlayerID())
	assert.Equal(t, 2, handSize(g, "p0"))
}

func TestSkipAdvancesByTwo(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", redSkip, blue1)

	require.NoError(t, g.PlayCard("p0", redSkip))
	assert.Equal(t, "p2", g.CurrentPlayerID())
}

func TestSkipWrapsWithTwoPlayers(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", redSkip, blue1)

	require.NoError(t, g.PlayCard("p0", redSkip))
	assert.Equal(t, "p0", g.CurrentPlayerID())
}

func TestReverseInvertsOrder(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", redRev, blue1)

	require.NoError(t, g.PlayCard("p0", redRev))
	assert.Equal(t, []string{"p2", "p1", "p0"}, g.PublicState().TurnOrder)
	assert.Equal(t, "p2", g.CurrentPlayerID())
}

func TestDrawTwoHitsNextPlayer(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", redDraw2, blue1)
	before := handSize(g, "p1")

	require.NoError(t, g.PlayCard("p0", redDraw2))
	assert.Equal(t, before+2, handSize(g, "p1"))
	assert.Equal(t, "p2", g.CurrentPlayerID())
	assert.NoError(t, g.CheckConservation())
}

func TestWildWaitsForColor(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", wild, blue1)

	// a client may send a color with the wild; it is ignored
	require.NoError(t, g.PlayCard("p0", Card{Type: CardWild, Color: Blue}))
	assert.Equal(t, PhaseAwaitingColor, g.Phase())
	assert.Equal(t, "p0", g.CurrentPlayerID())
	assert.True(t, g.PublicState().PendingColor)

	_, err := g.DrawCard("p0")
	assert.ErrorIs(t, err, apperr.ErrInvalidPhase)
	assert.ErrorIs(t, g.SetWildColor("p1", Green), apperr.ErrNotYourTurn)
	assert.ErrorIs(t, g.SetWildColor("p0", "purple"), apperr.ErrInvalidColor)

	require.NoError(t, g.SetWildColor("p0", Green))
	assert.Equal(t, PhaseAwaitingAction, g.Phase())
	assert.Equal(t, Green, g.CurrentColor())
	assert.Equal(t, "p1", g.CurrentPlayerID())
}

func TestWildDrawFour(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", wildDraw4, blue1)
	before := handSize(g, "p1")

	require.NoError(t, g.PlayCard("p0", wildDraw4))
	assert.Equal(t, before, handSize(g, "p1"), "penalty waits for the color")
	require.NoError(t, g.SetWildColor("p0", Blue))
	assert.Equal(t, before+4, handSize(g, "p1"))
	assert.Equal(t, "p2", g.CurrentPlayerID())
	assert.NoError(t, g.CheckConservation())
}

func TestDrawOncePerTurn(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	before := handSize(g, "p0")

	_, err := g.DrawCard("p0")
	require.NoError(t, err)
	assert.Equal(t, before+1, handSize(g, "p0"))
	assert.Equal(t, "p0", g.CurrentPlayerID(), "drawing does not end the turn")

	_, err = g.DrawCard("p0")
	assert.ErrorIs(t, err, apperr.ErrAlreadyDrawn)
	assert.Equal(t, before+1, handSize(g, "p0"))

	require.NoError(t, g.PassTurn("p0"))
	assert.Equal(t, "p1", g.CurrentPlayerID())
	assert.ErrorIs(t, g.PassTurn("p1"), apperr.ErrMustDrawFirst)
}

func TestDrawReshufflesDiscard(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	top := g.discard[len(g.discard)-1]
	g.discard = append(append([]Card{}, g.deck...), top)
	g.deck = nil
	require.NoError(t, g.CheckConservation())
	under := len(g.discard) - 1

	_, err := g.DrawCard("p0")
	require.NoError(t, err)
	assert.Equal(t, []Card{top}, g.discard)
	assert.Len(t, g.deck, under-1)
	assert.NoError(t, g.CheckConservation())
}

func TestTurnExclusivity(t *testing.T) {
	g := setupTestGame(t, 4, DefaultHouseRules())
	for _, id := range []string{"p1", "p2", "p3"} {
		p := g.player(id)
		assert.ErrorIs(t, g.PlayCard(id, p.Hand[0]), apperr.ErrNotYourTurn)
		_, err := g.DrawCard(id)
		assert.ErrorIs(t, err, apperr.ErrNotYourTurn)
		assert.ErrorIs(t, g.PassTurn(id), apperr.ErrNotYourTurn)
		assert.Equal(t, 7, len(p.Hand))
	}
	_, err := g.DrawCard("nobody")
	assert.ErrorIs(t, err, apperr.ErrNotInGame)
}

func TestBoomChallengeUpheld(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	setTop(t, g, red5)
	// red3 was a legal alternative, so the boom is challengeable and loses
	setHand(t, g, "p0", redBoom, red3, blue1)
	p1, p2 := handSize(g, "p1"), handSize(g, "p2")

	require.NoError(t, g.PlayCard("p0", redBoom))
	assert.Equal(t, p1+1, handSize(g, "p1"))
	assert.Equal(t, p2+1, handSize(g, "p2"))
	assert.Equal(t, "p0", g.CurrentPlayerID(), "boom keeps the turn")
	assert.True(t, g.Challengeable())

	turn := g.TurnID()
	verdict, err := g.ChallengeBoom("p1")
	require.NoError(t, err)
	assert.Equal(t, Verdict{LoserID: "p0", Penalty: 2}, verdict)
	assert.Equal(t, 4, handSize(g, "p0"))
	assert.Equal(t, PhaseAwaitingAction, g.Phase())
	assert.Equal(t, "p0", g.CurrentPlayerID())
	assert.Equal(t, turn, g.TurnID())
	assert.False(t, g.Challengeable())
	assert.NoError(t, g.CheckConservation())

	_, err = g.ChallengeBoom("p2")
	assert.ErrorIs(t, err, apperr.ErrChallengeNotAllowed)
}

func TestBoomChallengeRejected(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", redBoom, blue1)

	require.NoError(t, g.PlayCard("p0", redBoom))
	p2 := handSize(g, "p2")

	verdict, err := g.ChallengeBoom("p2")
	require.NoError(t, err)
	assert.Equal(t, "p2", verdict.LoserID)
	assert.Equal(t, p2+2, handSize(g, "p2"))
	assert.Equal(t, 1, handSize(g, "p0"))
}

func TestBoomChallengeGuards(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	_, err := g.ChallengeBoom("p1")
	assert.ErrorIs(t, err, apperr.ErrChallengeNotAllowed, "no boom on the pile")

	setTop(t, g, red5)
	setHand(t, g, "p0", redBoom, blue1)
	require.NoError(t, g.PlayCard("p0", redBoom))

	_, err = g.ChallengeBoom("p0")
	assert.ErrorIs(t, err, apperr.ErrChallengeNotAllowed, "cannot challenge yourself")

	_, err = g.ChallengeBoom("ghost")
	assert.ErrorIs(t, err, apperr.ErrNotInGame)
}

func TestCustomChallengeRule(t *testing.T) {
	var seen Challenge
	rule := ChallengeRuleFunc(func(c Challenge) Verdict {
		seen = c
		return Verdict{LoserID: c.ChallengerID, Penalty: 1}
	})
	g := setupTestGame(t, 2, DefaultHouseRules(), WithChallengeRule(rule))
	setTop(t, g, red5)
	setHand(t, g, "p0", redBoom, red3)
	require.NoError(t, g.PlayCard("p0", redBoom))
	p1 := handSize(g, "p1")

	_, err := g.ChallengeBoom("p1")
	require.NoError(t, err)
	assert.Equal(t, "p0", seen.ChallengedID)
	assert.False(t, seen.Eligible)
	assert.Equal(t, []Card{red3}, seen.ChallengedHand)
	assert.Equal(t, redBoom, seen.Top)
	assert.Equal(t, p1+1, handSize(g, "p1"))
}

func TestRevealRule(t *testing.T) {
	r := RevealRule{Penalty: 3}
	assert.Equal(t, Verdict{LoserID: "a", Penalty: 3}, r.Resolve(Challenge{ChallengerID: "b", ChallengedID: "a"}))
	assert.Equal(t, Verdict{LoserID: "b", Penalty: 3}, r.Resolve(Challenge{ChallengerID: "b", ChallengedID: "a", Eligible: true}))
}

func TestRoundWinRedeals(t *testing.T) {
	rules := HouseRules{HandSize: 7}
	g := setupTestGame(t, 2, rules)
	setTop(t, g, red5)
	setHand(t, g, "p0", red3)
	setHand(t, g, "p1", blue9, wild)

	require.NoError(t, g.PlayCard("p0", red3))

	assert.Equal(t, PhaseAwaitingAction, g.Phase())
	assert.Equal(t, 2, g.Round())
	assert.Equal(t, map[string]int{"p0": 59, "p1": 0}, g.Scores())
	assert.Equal(t, "p0", g.CurrentPlayerID(), "round winner leads")
	assert.Equal(t, 7, handSize(g, "p0"))
	assert.Equal(t, 7, handSize(g, "p1"))
	ps := g.PublicState()
	require.NotNil(t, ps.LastRound)
	assert.Equal(t, RoundResult{Round: 1, WinnerID: "p0", Points: 59}, *ps.LastRound)
	assert.Len(t, ps.DiscardPile, 1)
	assert.NoError(t, g.CheckConservation())
}

func TestScoreLimitEndsGame(t *testing.T) {
	g := setupTestGame(t, 2, HouseRules{ScoreLimit: 50})
	setTop(t, g, red5)
	setHand(t, g, "p0", red3)
	setHand(t, g, "p1", wild)

	require.NoError(t, g.PlayCard("p0", red3))
	assert.True(t, g.Over())
	assert.Equal(t, "p0", g.WinnerID())
	assert.NoError(t, g.CheckConservation())

	_, err := g.DrawCard("p1")
	assert.ErrorIs(t, err, apperr.ErrInvalidPhase)
}

func TestRoundLimitPicksLeader(t *testing.T) {
	g := setupTestGame(t, 2, HouseRules{RoundLimit: 1})
	g.player("p1").Score = 100
	setTop(t, g, red5)
	setHand(t, g, "p0", red3)
	setHand(t, g, "p1", blue9)

	require.NoError(t, g.PlayCard("p0", red3))
	assert.True(t, g.Over())
	assert.Equal(t, "p1", g.WinnerID())
}

func TestRoundLimitTieGoesToRoundWinner(t *testing.T) {
	g := setupTestGame(t, 2, HouseRules{RoundLimit: 1})
	g.player("p1").Score = 9
	setTop(t, g, red5)
	setHand(t, g, "p0", red3)
	setHand(t, g, "p1", blue9)

	require.NoError(t, g.PlayCard("p0", red3))
	assert.Equal(t, "p0", g.WinnerID())
}

func TestGoingOutOnWild(t *testing.T) {
	g := setupTestGame(t, 2, HouseRules{ScoreLimit: 1})
	setTop(t, g, red5)
	setHand(t, g, "p0", wildDraw4)
	setHand(t, g, "p1", blue1)

	require.NoError(t, g.PlayCard("p0", wildDraw4))
	assert.True(t, g.Over())
	assert.Equal(t, "p0", g.WinnerID())
	// blue1 plus the four drawn cards are scored
	assert.Greater(t, g.Scores()["p0"], 1)
	assert.NoError(t, g.CheckConservation())
}

func TestEliminateReturnsHand(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	deck := len(g.deck)

	require.NoError(t, g.Eliminate("p0"))
	p0, ok := g.Player("p0")
	require.True(t, ok)
	assert.False(t, p0.Active)
	assert.Empty(t, p0.Hand)
	assert.Equal(t, deck+7, len(g.deck))
	assert.Equal(t, "p1", g.CurrentPlayerID())
	assert.NoError(t, g.CheckConservation())

	_, err := g.DrawCard("p0")
	assert.ErrorIs(t, err, apperr.ErrNotInGame)

	require.NoError(t, g.Eliminate("p1"))
	assert.True(t, g.Over())
	assert.Equal(t, "p2", g.WinnerID())
	assert.NoError(t, g.CheckConservation())
}

func TestEliminateSkipsInTurnOrder(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	require.NoError(t, g.Eliminate("p1"))
	assert.Equal(t, "p0", g.CurrentPlayerID())

	_, err := g.DrawCard("p0")
	require.NoError(t, err)
	require.NoError(t, g.PassTurn("p0"))
	assert.Equal(t, "p2", g.CurrentPlayerID())
}

func TestEliminateWithPendingWild(t *testing.T) {
	g := setupTestGame(t, 3, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", wild, blue1, blue2)
	require.NoError(t, g.PlayCard("p0", wild))

	require.NoError(t, g.Eliminate("p0"))
	assert.Equal(t, PhaseAwaitingAction, g.Phase())
	assert.Equal(t, Blue, g.CurrentColor())
	assert.NoError(t, g.CheckConservation())
}

func TestAutoPass(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	before := handSize(g, "p0")

	assert.ErrorIs(t, g.AutoPass("p1"), apperr.ErrNotYourTurn)
	require.NoError(t, g.AutoPass("p0"))
	assert.Equal(t, before+1, handSize(g, "p0"))
	assert.Equal(t, "p1", g.CurrentPlayerID())
}

func TestAutoPassResolvesColor(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", wild, blue1, blue2, red3)
	require.NoError(t, g.PlayCard("p0", wild))

	require.NoError(t, g.AutoPass("p0"))
	assert.Equal(t, Blue, g.CurrentColor())
	assert.Equal(t, "p1", g.CurrentPlayerID())
}

func TestMarkDisconnected(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	assert.True(t, g.MarkDisconnected("p0"))
	assert.False(t, g.MarkDisconnected("p1"))
	assert.False(t, g.MarkDisconnected("ghost"))
	p0, _ := g.Player("p0")
	assert.False(t, p0.Connected)
	assert.True(t, p0.Active)
}

func TestDeckExhaustedAborts(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	p1 := g.player("p1")
	p1.Hand = append(p1.Hand, g.deck...)
	g.deck = nil
	require.NoError(t, g.CheckConservation())

	_, err := g.DrawCard("p0")
	assert.ErrorIs(t, err, apperr.ErrDeckExhausted)
	assert.True(t, g.Over())
	assert.Empty(t, g.WinnerID())
	assert.NoError(t, g.CheckConservation())
}

func TestDrawTwoExhaustionLeavesStateUntouched(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	setTop(t, g, red5)
	setHand(t, g, "p0", redDraw2, blue1)
	p1 := g.player("p1")
	p1.Hand = append(p1.Hand, g.deck...)
	p1.Hand = append(p1.Hand, g.discard[:len(g.discard)-1]...)
	g.deck = nil
	g.discard = []Card{g.discard[len(g.discard)-1]}
	require.NoError(t, g.CheckConservation())

	err := g.PlayCard("p0", redDraw2)
	assert.ErrorIs(t, err, apperr.ErrDeckExhausted)
	assert.True(t, g.Over())
	assert.Equal(t, 2, handSize(g, "p0"), "the card stays in hand")
}

func TestAbort(t *testing.T) {
	g := setupTestGame(t, 2, DefaultHouseRules())
	g.Abort()
	assert.True(t, g.Over())
	assert.Empty(t, g.WinnerID())
	g.Abort()
	assert.Equal(t, PhaseGameOver, g.Phase())
}

// TestRandomPlayConserves drives seeded games with a naive bot and checks the
// card count after every action.
func TestRandomPlayConserves(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		g, err := New("g", "l", testSeats(2+int(seed%4)), HouseRules{ScoreLimit: 200},
			WithRand(rand.New(rand.NewSource(seed))))
		require.NoError(t, err)

		for step := 0; step < 2000 && !g.Over(); step++ {
			id := g.CurrentPlayerID()
			p := g.player(id)
			err = nil
			if g.Phase() == PhaseAwaitingColor {
				err = g.SetWildColor(id, favoriteColor(p.Hand))
			} else if c, ok := firstLegal(g, p.Hand); ok {
				err = g.PlayCard(id, c)
			} else if !p.HasDrawnThisTurn {
				_, err = g.DrawCard(id)
			} else {
				err = g.PassTurn(id)
			}
			if err != nil {
				require.ErrorIs(t, err, apperr.ErrDeckExhausted, "seed %d step %d", seed, step)
			}
			require.NoError(t, g.CheckConservation(), "seed %d step %d", seed, step)
		}
	}
}

func firstLegal(g *Game, hand []Card) (Card, bool) {
	for _, c := range hand {
		if g.legal(c) {
			return c, true
		}
	}
	return Card{}, false
}

func TestStore(t *testing.T) {
	s := NewStore()
	g := setupTestGame(t, 2, DefaultHouseRules())
	s.Add(g)

	got, ok := s.Get("g1")
	require.True(t, ok)
	assert.Same(t, g, got)
	assert.Same(t, g, s.ByLobby("l1"))
	assert.Nil(t, s.ByLobby("other"))
	assert.Equal(t, 1, s.Len())
	assert.Len(t, s.All(), 1)

	assert.True(t, s.Delete("g1"))
	assert.False(t, s.Delete("g1"))
	_, ok = s.Get("g1")
	assert.False(t, ok)
}

func TestParseRules(t *testing.T) {
	base := DefaultHouseRules()
	got, err := ParseRules(map[string]interface{}{"handSize": float64(5), "roundLimit": nil}, base)
	require.NoError(t, err)
	assert.Equal(t, 5, got.HandSize)
	assert.Equal(t, base.ScoreLimit, got.ScoreLimit)
	assert.Equal(t, 7, base.HandSize, "base is not modified")

	_, err = ParseRules(map[string]interface{}{"handSize": "five"}, base)
	assert.Error(t, err)
	_, err = ParseRules(map[string]interface{}{"challengePenalty": float64(0)}, base)
	assert.Error(t, err)
	_, err = ParseRules(map[string]interface{}{"scoreLimit": 1.5}, base)
	assert.Error(t, err)
}

func TestCardJSONOmitsValueForActionCards(t *testing.T) {
	b, err := redSkip.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"skip","color":"red"}`, string(b))

	b, err = Card{Type: CardNumber, Value: 0, Color: Blue}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"number","value":0,"color":"blue"}`, string(b))
}

func TestCheckDeal(t *testing.T) {
	assert.NoError(t, HouseRules{HandSize: 7}.CheckDeal(10))
	assert.NoError(t, HouseRules{HandSize: 13}.CheckDeal(8))
	assert.ErrorIs(t, HouseRules{HandSize: 14}.CheckDeal(8), apperr.ErrInvalidRules)
	assert.ErrorIs(t, HouseRules{HandSize: 15}.CheckDeal(10), apperr.ErrInvalidRules)
	// zero falls back to the default hand
	assert.NoError(t, HouseRules{}.CheckDeal(10))
}
