// internal/session/coordinator.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jason-s-yu/boom/internal/apperr"
	"github.com/jason-s-yu/boom/internal/broadcast"
	"github.com/jason-s-yu/boom/internal/game"
	"github.com/jason-s-yu/boom/internal/lobby"
	"github.com/jason-s-yu/boom/internal/outbox"
	"github.com/jason-s-yu/boom/internal/protocol"
	"github.com/jason-s-yu/boom/internal/registry"
	"github.com/sirupsen/logrus"
)

// Options are the timing knobs of a coordinator.
type Options struct {
	HeartbeatInterval time.Duration
	TurnDuration      time.Duration // 0 disables the idle-turn timer
	DisconnectGrace   time.Duration // 0 eliminates disconnected players at once

	// GameOptions, if set, supplies per-game engine options (tests seed shuffles with it).
	GameOptions func() []game.Option
}

// Coordinator is the single entry point for client commands. It owns no state
// of its own beyond timers: lobbies, games and connections live in their
// managers, and every transition follows lock, apply, unlock, broadcast.
type Coordinator struct {
	reg     *registry.Registry
	hub     broadcast.Broadcaster
	lobbies *lobby.Manager
	games   *game.Store
	sink    outbox.Sink
	logger  *logrus.Logger
	opts    Options

	timers   *timerSet
	outgoing sync.Map // gameID -> *sync.Mutex, held from unlock until published
	draining atomic.Bool
}

// New wires a coordinator and installs its departure logic as the registry's
// deregistration hook.
func New(reg *registry.Registry, hub broadcast.Broadcaster, lobbies *lobby.Manager, games *game.Store, sink outbox.Sink, logger *logrus.Logger, opts Options) *Coordinator {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if sink == nil {
		sink = outbox.Discard{}
	}
	c := &Coordinator{
		reg:     reg,
		hub:     hub,
		lobbies: lobbies,
		games:   games,
		sink:    sink,
		logger:  logger,
		opts:    opts,
		timers:  newTimerSet(),
	}
	reg.OnDeregister(c.disconnect)
	return c
}

// Connect registers a new connection, greets it and sends the lobby browser.
func (c *Coordinator) Connect(userID, name string) (string, <-chan []byte, error) {
	if c.draining.Load() {
		return "", nil, apperr.ErrDraining
	}
	id, out := c.reg.Register(userID, name)
	c.hub.SendTo(id, protocol.ConnectionEstablished{ConnectionID: id, UserID: userID, Name: name})
	c.hub.SendTo(id, protocol.LobbyListUpdate{Lobbies: c.lobbies.ListWaiting()})
	c.logger.WithFields(logrus.Fields{"conn": id, "user": userID}).Info("connection established")
	return id, out, nil
}

// MarkAlive records a pong or any other sign of life from the connection.
func (c *Coordinator) MarkAlive(connID string) {
	c.reg.MarkAlive(connID)
}

// Disconnect is called by the transport when a socket closes. Departure logic
// runs through the registry hook, once, whichever path gets there first.
func (c *Coordinator) Disconnect(connID string) {
	c.reg.Deregister(connID, registry.ReasonClosed)
}

// Handle decodes one inbound frame and dispatches it. Protocol errors are
// answered on the connection and never close it.
func (c *Coordinator) Handle(connID string, frame []byte) error {
	c.reg.MarkAlive(connID)
	if c.draining.Load() {
		c.hub.SendTo(connID, protocol.ErrorFrom(apperr.ErrDraining))
		return apperr.ErrDraining
	}
	cmd, err := protocol.Decode(frame)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"conn": connID}).WithError(err).Warn("rejected frame")
		c.hub.SendTo(connID, protocol.ErrorFrom(err))
		return err
	}
	return c.Dispatch(connID, cmd)
}

// Dispatch applies one command for connID. On failure the connection gets an
// Error event and the error is returned; state is unchanged.
func (c *Coordinator) Dispatch(connID string, cmd protocol.Command) error {
	conn, ok := c.reg.Lookup(connID)
	if !ok {
		return fmt.Errorf("connection %s is not registered", connID)
	}

	var err error
	switch cmd := cmd.(type) {
	case protocol.CreateLobby:
		err = c.createLobby(conn, cmd)
	case protocol.JoinLobby:
		err = c.joinLobby(conn, cmd)
	case protocol.LeaveLobby:
		err = c.leaveLobby(conn)
	case protocol.ListLobbies:
		c.hub.SendTo(conn.ID, protocol.LobbyListUpdate{Lobbies: c.lobbies.ListWaiting()})
	case protocol.StartGame:
		err = c.startGame(conn)
	case protocol.PlayCard:
		err = c.withGame(conn, game.ActionPlay, func(g *game.Game) error {
			return g.PlayCard(conn.ID, cmd.Card)
		})
	case protocol.DrawCard:
		err = c.withGame(conn, game.ActionDraw, func(g *game.Game) error {
			_, err := g.DrawCard(conn.ID)
			return err
		})
	case protocol.PassTurn:
		err = c.withGame(conn, game.ActionPass, func(g *game.Game) error {
			return g.PassTurn(conn.ID)
		})
	case protocol.SetWildColor:
		err = c.withGame(conn, game.ActionSetColor, func(g *game.Game) error {
			return g.SetWildColor(conn.ID, cmd.Color)
		})
	case protocol.ChallengeBoom:
		err = c.withGame(conn, game.ActionChallenge, func(g *game.Game) error {
			_, err := g.ChallengeBoom(conn.ID)
			return err
		})
	case protocol.Heartbeat:
		c.hub.SendTo(conn.ID, protocol.HeartbeatAck{ServerTime: time.Now().UnixMilli()})
	default:
		err = apperr.ErrUnknownCommand
	}

	if err != nil {
		c.fail(conn, cmd, err)
	}
	return err
}

// fail is the one place an error becomes an Error event.
func (c *Coordinator) fail(conn registry.Conn, cmd protocol.Command, err error) {
	entry := c.logger.WithFields(logrus.Fields{
		"conn":    conn.ID,
		"user":    conn.UserID,
		"command": cmd.CommandType(),
		"code":    apperr.CodeOf(err),
	})
	switch apperr.CodeOf(err) {
	case apperr.CodeMalformedFrame, apperr.CodeUnknownCommand:
		entry.WithError(err).Warn("protocol error")
	case apperr.CodeDeckExhausted, apperr.CodeInternal:
		entry.WithError(err).Error("command failed")
	default:
		entry.Debug(err.Error())
	}
	c.hub.SendTo(conn.ID, protocol.ErrorFrom(err))
}

// Run sweeps for silent connections every heartbeat interval until ctx ends.
// A connection not heard from in two intervals is deregistered, which runs the
// normal departure logic.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep deregisters every connection silent for two heartbeat intervals.
func (c *Coordinator) Sweep() int {
	dead := c.reg.SweepDead(2 * c.opts.HeartbeatInterval)
	for _, id := range dead {
		c.logger.WithField("conn", id).Info("connection missed heartbeats, dropping")
		c.reg.Deregister(id, registry.ReasonTimeout)
	}
	return len(dead)
}

// Shutdown stops taking frames, ends running games, and closes every
// connection's queue so write pumps flush and hang up.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if c.draining.Swap(true) {
		return nil
	}
	c.timers.stopAll()

	for _, g := range c.games.All() {
		if ctx.Err() != nil {
			break
		}
		_ = c.apply(g, ReasonShutdown, func() error {
			g.Abort()
			return nil
		})
	}
	c.hub.BroadcastToAll(protocol.Info{Message: "server is shutting down"})

	n := c.reg.Drain()
	c.logger.Infof("Shutdown: drained %d connections", n)
	return ctx.Err()
}

// Stats reports live counts for health checks.
func (c *Coordinator) Stats() (connections, lobbies, games int) {
	return c.reg.Len(), c.lobbies.Len(), c.games.Len()
}

func member(conn registry.Conn) lobby.Member {
	return lobby.Member{ConnID: conn.ID, UserID: conn.UserID, Name: conn.Name}
}

var errStale = errors.New("stale timer")
