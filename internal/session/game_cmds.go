package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/boom/internal/apperr"
	"github.com/jason-s-yu/boom/internal/game"
	"github.com/jason-s-yu/boom/internal/lobby"
	"github.com/jason-s-yu/boom/internal/outbox"
	"github.com/jason-s-yu/boom/internal/protocol"
	"github.com/jason-s-yu/boom/internal/registry"
	"github.com/sirupsen/logrus"
)

// Game-over reasons carried in GameOver events.
const (
	ReasonDeckExhausted = "deckExhausted"
	ReasonShutdown      = "shutdown"
)

// snapshot is everything published after one transition, captured under the
// game lock so the broadcast can happen without it.
type snapshot struct {
	gameID     string
	lobbyID    string
	state      game.PublicState
	hands      map[string][]game.Card
	over       bool
	winnerID   string
	scores     map[string]int
	playerIDs  []string
	userIDs    []string
	turnID     int
	current    string
	roundEnded *game.RoundResult
}

func takeSnapshot(g *game.Game, roundBefore int) snapshot {
	ps := g.PublicState()
	s := snapshot{
		gameID:    g.ID,
		lobbyID:   g.LobbyID,
		state:     ps,
		hands:     g.Hands(),
		over:      g.Over(),
		winnerID:  g.WinnerID(),
		scores:    g.Scores(),
		playerIDs: g.PlayerIDs(),
		turnID:    g.TurnID(),
		current:   g.CurrentPlayerID(),
	}
	for _, p := range ps.Players {
		s.userIDs = append(s.userIDs, p.UserID)
	}
	if ps.LastRound != nil && ps.LastRound.Round == roundBefore {
		s.roundEnded = ps.LastRound
	}
	return s
}

func (c *Coordinator) startGame(conn registry.Conn) error {
	var started *game.Game
	st, err := c.lobbies.StartGame(conn.ID, func(st lobby.State) (string, error) {
		seats := make([]game.Seat, 0, len(st.Members))
		for _, m := range st.Members {
			seats = append(seats, game.Seat{PlayerID: m.ConnID, UserID: m.UserID, Name: m.Name})
		}
		var opts []game.Option
		if c.opts.GameOptions != nil {
			opts = c.opts.GameOptions()
		}
		g, err := game.New(uuid.NewString(), st.LobbyID, seats, st.Rules, opts...)
		if err != nil {
			return "", err
		}
		c.games.Add(g)
		started = g
		return g.ID, nil
	})
	if err != nil {
		return err
	}

	for _, m := range st.Members {
		c.reg.SetGame(m.ConnID, started.ID)
	}

	out := c.outgoingLock(started.ID)
	started.Mu.Lock()
	snap := takeSnapshot(started, started.Round())
	out.Lock()
	started.Mu.Unlock()

	c.logger.Infof("Lobby %s: game %s started with %d players", st.LobbyID, started.ID, len(st.Members))
	c.hub.BroadcastToGame(started.ID, protocol.NewGameStarted(snap.state, snap.hands))
	c.armTurn(started, snap)
	out.Unlock()
	c.broadcastList()
	c.sink.Enqueue(outbox.Record{
		Kind:      outbox.KindGameStarted,
		GameID:    started.ID,
		LobbyID:   st.LobbyID,
		Round:     snap.state.Round,
		PlayerIDs: snap.playerIDs,
		UserIDs:   snap.userIDs,
	})
	return nil
}

func (c *Coordinator) gameOf(conn registry.Conn) *game.Game {
	if conn.GameID == "" {
		return nil
	}
	g, ok := c.games.Get(conn.GameID)
	if !ok {
		return nil
	}
	return g
}

// withGame runs one player action against the connection's game. Authorize is
// a pre-check that fails fast before fn; the engine methods check again
// themselves and decide the exceptions (a challenge may come from any active
// player).
func (c *Coordinator) withGame(conn registry.Conn, action game.Action, fn func(g *game.Game) error) error {
	g := c.gameOf(conn)
	if g == nil {
		return apperr.ErrNotInGame
	}
	return c.apply(g, "", func() error {
		if err := g.Authorize(conn.ID, action); err != nil {
			return err
		}
		return fn(g)
	})
}

// apply runs fn under the game lock, snapshots, releases the lock and then
// publishes. reason labels a game that ends during fn. The game's outgoing lock
// is taken before the state lock is released, so snapshots go out in the order
// they were taken.
func (c *Coordinator) apply(g *game.Game, reason string, fn func() error) error {
	out := c.outgoingLock(g.ID)

	g.Mu.Lock()
	roundBefore := g.Round()
	err := fn()
	snap := takeSnapshot(g, roundBefore)
	out.Lock()
	g.Mu.Unlock()

	c.publish(g, snap, reason, err)
	out.Unlock()
	if snap.over {
		c.outgoing.Delete(g.ID)
	}
	return err
}

func (c *Coordinator) outgoingLock(gameID string) *sync.Mutex {
	mu, _ := c.outgoing.LoadOrStore(gameID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (c *Coordinator) publish(g *game.Game, snap snapshot, reason string, err error) {
	if snap.roundEnded != nil {
		c.logger.Infof("Game %s: round %d won by %s for %d points", snap.gameID, snap.roundEnded.Round, snap.roundEnded.WinnerID, snap.roundEnded.Points)
		c.sink.Enqueue(outbox.Record{
			Kind:      outbox.KindRoundEnded,
			GameID:    snap.gameID,
			LobbyID:   snap.lobbyID,
			Round:     snap.roundEnded.Round,
			PlayerIDs: snap.playerIDs,
			WinnerID:  snap.roundEnded.WinnerID,
			Scores:    snap.scores,
		})
	}
	if snap.over {
		if reason == "" && snap.winnerID == "" {
			reason = ReasonDeckExhausted
		}
		c.finishGame(snap, reason)
		return
	}
	if err != nil {
		return
	}
	c.hub.BroadcastToGame(snap.gameID, protocol.NewGameStateUpdate(snap.state, snap.hands))
	c.armTurn(g, snap)
}

// finishGame tears a finished game down. Only the caller that removes the game
// from the store does anything, so GameOver goes out once.
func (c *Coordinator) finishGame(snap snapshot, reason string) {
	if !c.games.Delete(snap.gameID) {
		return
	}
	c.timers.cancelGame(snap.gameID)

	c.logger.WithFields(logrus.Fields{
		"game":   snap.gameID,
		"lobby":  snap.lobbyID,
		"winner": snap.winnerID,
		"reason": reason,
	}).Info("game over")

	c.hub.BroadcastToGame(snap.gameID, protocol.GameOver{
		GameID:      snap.gameID,
		WinnerID:    snap.winnerID,
		FinalScores: snap.scores,
		Reason:      reason,
	})
	for _, id := range snap.playerIDs {
		c.reg.SetGame(id, "")
	}

	if st, ok := c.lobbies.EndGame(snap.lobbyID, snap.gameID); ok {
		c.hub.BroadcastToLobby(st.LobbyID, protocol.LobbyStateUpdate{State: st})
		c.broadcastList()
	}
	c.sink.Enqueue(outbox.Record{
		Kind:      outbox.KindGameOver,
		GameID:    snap.gameID,
		LobbyID:   snap.lobbyID,
		Round:     snap.state.Round,
		PlayerIDs: snap.playerIDs,
		UserIDs:   snap.userIDs,
		WinnerID:  snap.winnerID,
		Scores:    snap.scores,
		Reason:    reason,
	})
}

// armTurn starts the idle timer for the snapshot's turn.
func (c *Coordinator) armTurn(g *game.Game, snap snapshot) {
	if c.opts.TurnDuration <= 0 || snap.over {
		return
	}
	turnID, playerID := snap.turnID, snap.current
	c.timers.armTurn(snap.gameID, turnID, c.opts.TurnDuration, func() {
		c.turnExpired(g, turnID, playerID)
	})
}

func (c *Coordinator) turnExpired(g *game.Game, turnID int, playerID string) {
	err := c.apply(g, "", func() error {
		if g.Over() || g.TurnID() != turnID || g.CurrentPlayerID() != playerID {
			return errStale
		}
		return g.AutoPass(playerID)
	})
	switch {
	case err == nil:
		c.logger.Infof("Game %s: turn %d timed out, skipped %s", g.ID, turnID, playerID)
	case !errors.Is(err, errStale):
		c.logger.WithField("game", g.ID).WithError(err).Warn("auto-pass failed")
	}
}

// leaveGame takes a player out of their game at once, as when they leave the
// lobby mid-game.
func (c *Coordinator) leaveGame(conn registry.Conn) {
	g := c.gameOf(conn)
	if g == nil {
		return
	}
	c.timers.clearGrace(g.ID, conn.ID)
	err := c.apply(g, "", func() error {
		if p, ok := g.Player(conn.ID); !ok || !p.Active || g.Over() {
			return errStale
		}
		return g.Eliminate(conn.ID)
	})
	c.reg.SetGame(conn.ID, "")
	if err == nil {
		c.recordElimination(g, conn.ID, conn.UserID, "left")
	}
}

// playerGone handles a connection that dropped mid-game: the player is marked
// disconnected and gets one grace period before being eliminated.
func (c *Coordinator) playerGone(g *game.Game, conn registry.Conn) {
	err := c.apply(g, "", func() error {
		p, ok := g.Player(conn.ID)
		if !ok || !p.Active || g.Over() {
			return errStale
		}
		g.MarkDisconnected(conn.ID)
		return nil
	})
	if err != nil {
		return
	}
	c.logger.Infof("Game %s: player %s disconnected, grace %s", g.ID, conn.ID, c.opts.DisconnectGrace)
	if c.opts.DisconnectGrace <= 0 {
		c.graceExpired(g, conn)
		return
	}
	c.timers.armGrace(g.ID, conn.ID, c.opts.DisconnectGrace, func() {
		c.graceExpired(g, conn)
	})
}

// graceExpired passes the player's turn if they hold it and then eliminates
// them; their hand goes back into the deck.
func (c *Coordinator) graceExpired(g *game.Game, conn registry.Conn) {
	c.timers.clearGrace(g.ID, conn.ID)
	err := c.apply(g, "", func() error {
		p, ok := g.Player(conn.ID)
		if !ok || !p.Active || p.Connected || g.Over() {
			return errStale
		}
		if g.CurrentPlayerID() == conn.ID {
			if err := g.AutoPass(conn.ID); err != nil {
				return err
			}
		}
		return g.Eliminate(conn.ID)
	})
	switch {
	case err == nil:
		c.logger.Infof("Game %s: player %s eliminated after disconnect", g.ID, conn.ID)
		c.recordElimination(g, conn.ID, conn.UserID, "disconnected")
	case !errors.Is(err, errStale):
		c.logger.WithField("game", g.ID).WithError(err).Warn("elimination after disconnect failed")
	}
}

func (c *Coordinator) recordElimination(g *game.Game, playerID, userID, reason string) {
	c.sink.Enqueue(outbox.Record{
		Kind:      outbox.KindPlayerEliminated,
		GameID:    g.ID,
		LobbyID:   g.LobbyID,
		PlayerIDs: []string{playerID},
		UserIDs:   []string{userID},
		Reason:    reason,
	})
}
