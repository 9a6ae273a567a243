// internal/game/game.go
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jason-s-yu/boom/internal/apperr"
)

const (
	MinSeats = 2
	MaxSeats = 10
)

// Seat is one lobby member entering a game. PlayerID is the member's connection ID.
type Seat struct {
	PlayerID string
	UserID   string
	Name     string
}

// PlayerState is the per-player slice of a game.
type PlayerState struct {
	ID               string
	UserID           string
	Name             string
	Hand             []Card
	Score            int
	Active           bool // false once eliminated
	Connected        bool
	HasDrawnThisTurn bool
}

// RoundResult records how the last finished round ended.
type RoundResult struct {
	Round    int    `json:"round"`
	WinnerID string `json:"winnerId"`
	Points   int    `json:"points"`
}

type pendingWild struct {
	playerID string
	drawFour bool
}

// boomPlay is the most recent Boom on the discard pile, open to one challenge.
type boomPlay struct {
	playerID string
	eligible bool // the player held no other legal non-Boom card when playing it
}

// Game is one running table. All methods except the constructor assume the
// caller holds Mu, the same way the session layer serializes commands per game.
type Game struct {
	ID      string
	LobbyID string
	Rules   HouseRules

	Mu sync.Mutex

	deck      []Card // deck[0] is the next draw
	discard   []Card // last element is the top
	players   []*PlayerState
	turnOrder []string
	current   int // index into turnOrder

	phase        Phase
	currentColor Color
	pending      *pendingWild
	boom         *boomPlay

	round      int
	turnID     int
	total      int
	winnerID   string
	lastRound  *RoundResult
	lastAction string
	startedAt  time.Time

	rng       *rand.Rand
	challenge ChallengeRule
}

// Option customizes a new game.
type Option func(*Game)

// WithRand fixes the shuffle source, mostly for tests.
func WithRand(r *rand.Rand) Option {
	return func(g *Game) { g.rng = r }
}

// WithChallengeRule replaces the default Boom challenge resolution.
func WithChallengeRule(rule ChallengeRule) Option {
	return func(g *Game) { g.challenge = rule }
}

// New seats the players in the given order, shuffles, deals and flips the first
// discard. The game comes back in PhaseAwaitingAction with the first seat to act.
func New(id, lobbyID string, seats []Seat, rules HouseRules, opts ...Option) (*Game, error) {
	switch {
	case len(seats) < MinSeats:
		return nil, fmt.Errorf("game needs at least %d players, got %d: %w", MinSeats, len(seats), apperr.ErrNotEnoughPlayers)
	case len(seats) > MaxSeats:
		return nil, fmt.Errorf("game takes at most %d players, got %d: %w", MaxSeats, len(seats), apperr.ErrTooManyPlayers)
	}
	rules = rules.withDefaults()
	if err := rules.CheckDeal(len(seats)); err != nil {
		return nil, err
	}

	g := &Game{
		ID:        id,
		LobbyID:   lobbyID,
		Rules:     rules,
		phase:     PhaseDealing,
		deck:      StandardDeck(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if g.challenge == nil {
		g.challenge = RevealRule{Penalty: rules.ChallengePenalty}
	}
	g.total = len(g.deck)

	seen := make(map[string]bool, len(seats))
	for _, s := range seats {
		if seen[s.PlayerID] {
			return nil, fmt.Errorf("duplicate seat %s", s.PlayerID)
		}
		seen[s.PlayerID] = true
		g.players = append(g.players, &PlayerState{
			ID:        s.PlayerID,
			UserID:    s.UserID,
			Name:      s.Name,
			Active:    true,
			Connected: true,
		})
		g.turnOrder = append(g.turnOrder, s.PlayerID)
	}

	g.round = 1
	g.deal()
	g.enter(PhaseAwaitingAction)
	g.beginTurn()
	return g, nil
}

// deal gathers every card, shuffles, deals HandSize to each active player and
// flips the first discard. Wild cards are never left as the first discard.
// Assumes phase is dealing.
func (g *Game) deal() {
	for _, p := range g.players {
		g.deck = append(g.deck, p.Hand...)
		p.Hand = nil
		p.HasDrawnThisTurn = false
	}
	g.deck = append(g.deck, g.discard...)
	g.discard = nil
	g.pending = nil
	g.boom = nil
	shuffle(g.rng, g.deck)

	for _, p := range g.players {
		if !p.Active {
			continue
		}
		p.Hand = make([]Card, 0, g.Rules.HandSize)
		p.Hand = append(p.Hand, g.deck[:g.Rules.HandSize]...)
		g.deck = g.deck[g.Rules.HandSize:]
	}

	for attempt := 0; g.deck[0].IsWild(); attempt++ {
		if attempt >= 16 {
			// move the first colored card to the top rather than shuffling forever
			for i, c := range g.deck {
				if !c.IsWild() {
					g.deck[0], g.deck[i] = g.deck[i], g.deck[0]
					break
				}
			}
			break
		}
		shuffle(g.rng, g.deck)
	}
	first := g.deck[0]
	g.deck = g.deck[1:]
	g.discard = append(g.discard, first)
	g.currentColor = first.Color
}

// Authorize is the one gate every player action passes: the phase must accept
// the action, the player must be seated and active, and turn-bound actions must
// come from the current player.
func (g *Game) Authorize(playerID string, a Action) error {
	if !g.phase.Accepts(a) {
		return apperr.ErrInvalidPhase
	}
	p := g.player(playerID)
	if p == nil || !p.Active {
		return apperr.ErrNotInGame
	}
	if turnBound[a] && g.CurrentPlayerID() != playerID {
		return apperr.ErrNotYourTurn
	}
	return nil
}

// PlayCard plays one copy of card from the player's hand.
func (g *Game) PlayCard(playerID string, card Card) error {
	if err := g.Authorize(playerID, ActionPlay); err != nil {
		return err
	}
	card = card.Normalize()
	if err := card.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, apperr.ErrInvalidCard)
	}
	p := g.player(playerID)
	idx := indexOf(p.Hand, card)
	if idx < 0 || !g.legal(card) {
		return apperr.ErrInvalidCard
	}

	// forced draws caused by this card must be coverable before anything moves
	need := g.penaltyFor(card)
	if card.Type == CardWildDrawFour && len(p.Hand) == 1 {
		need = 4
	}
	if need > g.drawable()+1 {
		g.abort()
		return apperr.ErrDeckExhausted
	}

	eligible := true
	if card.Type == CardBoom {
		eligible = !g.hasOtherLegal(p.Hand, idx)
	}

	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	g.discard = append(g.discard, card)
	g.boom = nil
	g.lastAction = fmt.Sprintf("%s played %s", p.Name, card)

	switch card.Type {
	case CardNumber:
		g.currentColor = card.Color
		g.settleOr(func() { g.advance(1) })
	case CardSkip:
		g.currentColor = card.Color
		g.settleOr(func() { g.advance(2) })
	case CardReverse:
		g.currentColor = card.Color
		g.reverse()
		g.settleOr(func() { g.advance(1) })
	case CardDrawTwo:
		g.currentColor = card.Color
		victim := g.players[g.playerIndex(g.turnOrder[g.nextIndex(g.current)])]
		g.mustDraw(victim, 2)
		g.lastAction += fmt.Sprintf("; %s draws 2", victim.Name)
		g.settleOr(func() { g.advance(2) })
	case CardBoom:
		g.currentColor = card.Color
		for _, other := range g.players {
			if other.Active && other.ID != p.ID {
				g.mustDraw(other, 1)
			}
		}
		g.boom = &boomPlay{playerID: p.ID, eligible: eligible}
		g.lastAction += "; everyone else draws 1"
		// the turn holder keeps the turn
		g.settleOr(func() {})
	case CardWild, CardWildDrawFour:
		if len(p.Hand) == 0 {
			// going out on a wild needs no color; a draw four still lands
			if card.Type == CardWildDrawFour {
				victim := g.players[g.playerIndex(g.turnOrder[g.nextIndex(g.current)])]
				g.mustDraw(victim, 4)
			}
			g.settleOr(func() {})
			return nil
		}
		g.pending = &pendingWild{playerID: p.ID, drawFour: card.Type == CardWildDrawFour}
		g.enter(PhaseAwaitingColor)
	}
	return nil
}

// SetWildColor resolves a pending wild played by the same player and advances.
func (g *Game) SetWildColor(playerID string, color Color) error {
	if err := g.Authorize(playerID, ActionSetColor); err != nil {
		return err
	}
	if g.pending == nil || g.pending.playerID != playerID {
		return apperr.ErrInvalidPhase
	}
	if !color.Valid() {
		return apperr.ErrInvalidColor
	}
	if g.pending.drawFour && 4 > g.drawable() {
		g.abort()
		return apperr.ErrDeckExhausted
	}
	g.resolveWild(color)
	return nil
}

// resolveWild applies the chosen color and any draw-four penalty. Assumes the
// pending wild exists and the penalty is coverable.
func (g *Game) resolveWild(color Color) {
	p := g.player(g.pending.playerID)
	drawFour := g.pending.drawFour
	g.pending = nil
	g.currentColor = color
	g.enter(PhaseAwaitingAction)
	g.lastAction = fmt.Sprintf("%s chose %s", p.Name, color)
	if drawFour {
		victim := g.players[g.playerIndex(g.turnOrder[g.nextIndex(g.current)])]
		g.mustDraw(victim, 4)
		g.lastAction += fmt.Sprintf("; %s draws 4", victim.Name)
		g.advance(2)
		return
	}
	g.advance(1)
}

// DrawCard moves the top of the deck into the player's hand, once per turn.
// The turn does not advance; the player may play the drawn card or pass.
func (g *Game) DrawCard(playerID string) (Card, error) {
	if err := g.Authorize(playerID, ActionDraw); err != nil {
		return Card{}, err
	}
	p := g.player(playerID)
	if p.HasDrawnThisTurn {
		return Card{}, apperr.ErrAlreadyDrawn
	}
	if g.drawable() < 1 {
		g.abort()
		return Card{}, apperr.ErrDeckExhausted
	}
	if g.boom != nil && g.boom.playerID != playerID {
		g.boom = nil
	}
	g.mustDraw(p, 1)
	p.HasDrawnThisTurn = true
	g.lastAction = fmt.Sprintf("%s drew a card", p.Name)
	return p.Hand[len(p.Hand)-1], nil
}

// PassTurn ends the turn of a player who has already drawn.
func (g *Game) PassTurn(playerID string) error {
	if err := g.Authorize(playerID, ActionPass); err != nil {
		return err
	}
	p := g.player(playerID)
	if !p.HasDrawnThisTurn {
		return apperr.ErrMustDrawFirst
	}
	g.lastAction = fmt.Sprintf("%s passed", p.Name)
	g.advance(1)
	return nil
}

// AutoPass acts for a turn holder who is idle or gone: a pending wild gets the
// color they hold most, otherwise they draw (if they have not) and pass.
func (g *Game) AutoPass(playerID string) error {
	if g.phase == PhaseGameOver {
		return apperr.ErrInvalidPhase
	}
	if g.CurrentPlayerID() != playerID {
		return apperr.ErrNotYourTurn
	}
	p := g.player(playerID)
	switch g.phase {
	case PhaseAwaitingColor:
		if g.pending.drawFour && 4 > g.drawable() {
			g.abort()
			return apperr.ErrDeckExhausted
		}
		g.resolveWild(favoriteColor(p.Hand))
	case PhaseAwaitingAction:
		if !p.HasDrawnThisTurn {
			if g.drawable() < 1 {
				g.abort()
				return apperr.ErrDeckExhausted
			}
			g.mustDraw(p, 1)
		}
		g.advance(1)
	default:
		return apperr.ErrInvalidPhase
	}
	g.lastAction = fmt.Sprintf("%s was skipped", p.Name)
	return nil
}

// MarkDisconnected flags the player as gone and reports whether they hold the turn.
func (g *Game) MarkDisconnected(playerID string) (holdsTurn bool) {
	p := g.player(playerID)
	if p == nil || !p.Active {
		return false
	}
	p.Connected = false
	return g.phase != PhaseGameOver && g.CurrentPlayerID() == playerID
}

// Eliminate removes the player from play for good. Their hand goes back into
// the deck, which is reshuffled so card conservation holds. If they held the
// turn it moves on; if one active player remains the game ends.
func (g *Game) Eliminate(playerID string) error {
	p := g.player(playerID)
	if p == nil {
		return apperr.ErrNotInGame
	}
	if !p.Active || g.phase == PhaseGameOver {
		return nil
	}

	if g.pending != nil && g.pending.playerID == playerID {
		if g.pending.drawFour && 4 > g.drawable() {
			g.pending.drawFour = false
		}
		g.resolveWild(favoriteColor(p.Hand))
	}
	holdsTurn := g.CurrentPlayerID() == playerID

	p.Active = false
	p.Connected = false
	p.HasDrawnThisTurn = false
	g.deck = append(g.deck, p.Hand...)
	p.Hand = nil
	shuffle(g.rng, g.deck)
	if g.boom != nil && g.boom.playerID == playerID {
		g.boom = nil
	}
	g.lastAction = fmt.Sprintf("%s left the game", p.Name)

	if g.activeCount() <= 1 {
		g.finish(g.soleSurvivor())
		return nil
	}
	if holdsTurn {
		g.advance(1)
	}
	return nil
}

// Abort ends the game with no winner.
func (g *Game) Abort() {
	if g.phase != PhaseGameOver {
		g.abort()
	}
}

func (g *Game) abort() {
	g.pending = nil
	g.boom = nil
	g.winnerID = ""
	g.enter(PhaseGameOver)
	g.lastAction = "game aborted: no cards left to draw"
}

// settleOr checks the end conditions after a play; if the game goes on, next
// runs to move the turn.
func (g *Game) settleOr(next func()) {
	if g.activeCount() <= 1 {
		g.finish(g.soleSurvivor())
		return
	}
	for _, p := range g.players {
		if p.Active && len(p.Hand) == 0 {
			g.endRound(p)
			return
		}
	}
	next()
}

// endRound scores the round for winner and either ends the game or re-deals
// in place under the same game ID.
func (g *Game) endRound(winner *PlayerState) {
	points := 0
	for _, p := range g.players {
		if p.ID != winner.ID {
			points += handPoints(p.Hand)
		}
	}
	winner.Score += points
	g.lastRound = &RoundResult{Round: g.round, WinnerID: winner.ID, Points: points}
	g.pending = nil
	g.boom = nil
	g.enter(PhaseRoundEnd)

	roundCap := g.Rules.RoundLimit > 0 && g.round >= g.Rules.RoundLimit
	scoreCap := g.Rules.ScoreLimit > 0 && winner.Score >= g.Rules.ScoreLimit
	if roundCap || scoreCap {
		g.finish(g.leader(winner.ID))
		return
	}

	g.enter(PhaseDealing)
	g.round++
	g.deal()
	g.current = indexOfID(g.turnOrder, winner.ID)
	g.enter(PhaseAwaitingAction)
	g.beginTurn()
	g.lastAction = fmt.Sprintf("%s won round %d (+%d)", winner.Name, g.round-1, points)
}

func (g *Game) finish(winnerID string) {
	g.pending = nil
	g.boom = nil
	g.winnerID = winnerID
	g.enter(PhaseGameOver)
}

// leader is the highest total score; tie goes to the given round winner.
func (g *Game) leader(roundWinner string) string {
	best := g.player(roundWinner)
	for _, p := range g.players {
		if p.Active && p.Score > best.Score {
			best = p
		}
	}
	return best.ID
}

func (g *Game) soleSurvivor() string {
	for _, p := range g.players {
		if p.Active {
			return p.ID
		}
	}
	return ""
}

// advance moves the turn forward by steps active players and starts the new turn.
func (g *Game) advance(steps int) {
	for i := 0; i < steps; i++ {
		g.current = g.nextIndex(g.current)
	}
	g.beginTurn()
}

func (g *Game) beginTurn() {
	g.turnID++
	for _, p := range g.players {
		p.HasDrawnThisTurn = false
	}
}

// nextIndex is the turn-order index of the next active player after from.
func (g *Game) nextIndex(from int) int {
	n := len(g.turnOrder)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if p := g.player(g.turnOrder[idx]); p != nil && p.Active {
			return idx
		}
	}
	return from
}

// reverse inverts the turn order, keeping the current player current.
func (g *Game) reverse() {
	n := len(g.turnOrder)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		g.turnOrder[i], g.turnOrder[j] = g.turnOrder[j], g.turnOrder[i]
	}
	g.current = n - 1 - g.current
}

// legal reports whether card may go on the discard pile right now.
func (g *Game) legal(card Card) bool {
	if card.IsWild() {
		return true
	}
	if card.Color == g.currentColor {
		return true
	}
	top := g.discard[len(g.discard)-1]
	if card.Type != top.Type {
		return false
	}
	return card.Type != CardNumber || card.Value == top.Value
}

// hasOtherLegal reports whether the hand holds a legal non-Boom card besides skip.
func (g *Game) hasOtherLegal(hand []Card, skip int) bool {
	for i, c := range hand {
		if i != skip && c.Type != CardBoom && g.legal(c) {
			return true
		}
	}
	return false
}

// penaltyFor is how many forced draws playing card will cause.
func (g *Game) penaltyFor(card Card) int {
	switch card.Type {
	case CardDrawTwo:
		return 2
	case CardBoom:
		return g.activeCount() - 1
	}
	return 0
}

// drawable is how many cards can still be drawn: the deck plus everything
// under the discard top.
func (g *Game) drawable() int {
	n := len(g.deck)
	if len(g.discard) > 1 {
		n += len(g.discard) - 1
	}
	return n
}

// mustDraw moves n cards into p's hand, reshuffling the discard pile (minus its
// top) into the deck when it runs out. Callers check drawable first.
func (g *Game) mustDraw(p *PlayerState, n int) {
	for i := 0; i < n; i++ {
		if len(g.deck) == 0 {
			g.reshuffleDiscard()
		}
		if len(g.deck) == 0 {
			panic(fmt.Sprintf("game %s: draw with no cards left", g.ID))
		}
		p.Hand = append(p.Hand, g.deck[0])
		g.deck = g.deck[1:]
	}
}

func (g *Game) reshuffleDiscard() {
	if len(g.discard) < 2 {
		return
	}
	top := g.discard[len(g.discard)-1]
	g.deck = append(g.deck, g.discard[:len(g.discard)-1]...)
	g.discard = []Card{top}
	shuffle(g.rng, g.deck)
}

func (g *Game) activeCount() int {
	n := 0
	for _, p := range g.players {
		if p.Active {
			n++
		}
	}
	return n
}

func (g *Game) player(id string) *PlayerState {
	for _, p := range g.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *Game) playerIndex(id string) int {
	for i, p := range g.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// CurrentPlayerID is the player whose turn it is.
func (g *Game) CurrentPlayerID() string {
	if len(g.turnOrder) == 0 {
		return ""
	}
	return g.turnOrder[g.current]
}

func (g *Game) Phase() Phase         { return g.phase }
func (g *Game) Over() bool           { return g.phase == PhaseGameOver }
func (g *Game) WinnerID() string     { return g.winnerID }
func (g *Game) TurnID() int          { return g.turnID }
func (g *Game) Round() int           { return g.round }
func (g *Game) CurrentColor() Color  { return g.currentColor }
func (g *Game) StartedAt() time.Time { return g.startedAt }

// Player returns a copy of one player's state.
func (g *Game) Player(id string) (PlayerState, bool) {
	p := g.player(id)
	if p == nil {
		return PlayerState{}, false
	}
	cp := *p
	cp.Hand = append([]Card(nil), p.Hand...)
	return cp, true
}

// Scores returns every player's total keyed by player ID.
func (g *Game) Scores() map[string]int {
	out := make(map[string]int, len(g.players))
	for _, p := range g.players {
		out[p.ID] = p.Score
	}
	return out
}

// PlayerIDs returns the seated players in seat order, eliminated ones included.
func (g *Game) PlayerIDs() []string {
	ids := make([]string, 0, len(g.players))
	for _, p := range g.players {
		ids = append(ids, p.ID)
	}
	return ids
}

// CheckConservation verifies that no card has been created or lost.
func (g *Game) CheckConservation() error {
	n := len(g.deck) + len(g.discard)
	for _, p := range g.players {
		if !p.Active && len(p.Hand) > 0 {
			return fmt.Errorf("eliminated player %s still holds %d cards", p.ID, len(p.Hand))
		}
		n += len(p.Hand)
	}
	if n != g.total {
		return fmt.Errorf("card count %d, want %d", n, g.total)
	}
	return nil
}

func favoriteColor(hand []Card) Color {
	counts := map[Color]int{}
	for _, c := range hand {
		if c.Color.Valid() {
			counts[c.Color]++
		}
	}
	best := Red
	for _, c := range Colors {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

func indexOf(hand []Card, card Card) int {
	for i, c := range hand {
		if c == card {
			return i
		}
	}
	return -1
}

func indexOfID(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return 0
}
