package session

import (
	"github.com/jason-s-yu/boom/internal/apperr"
	"github.com/jason-s-yu/boom/internal/game"
	"github.com/jason-s-yu/boom/internal/lobby"
	"github.com/jason-s-yu/boom/internal/protocol"
	"github.com/jason-s-yu/boom/internal/registry"
)

func (c *Coordinator) createLobby(conn registry.Conn, cmd protocol.CreateLobby) error {
	st, err := c.lobbies.Create(member(conn), lobby.CreateOptions{
		Name:       cmd.Name,
		MaxPlayers: cmd.MaxPlayers,
		Rules:      cmd.Rules,
	})
	if err != nil {
		return err
	}
	c.reg.SetLobby(conn.ID, st.LobbyID)
	c.logger.Infof("Lobby %s: created by %s (%q, max %d)", st.LobbyID, conn.ID, st.Name, st.MaxPlayers)
	c.hub.BroadcastToLobby(st.LobbyID, protocol.LobbyStateUpdate{State: st})
	c.broadcastList()
	return nil
}

func (c *Coordinator) joinLobby(conn registry.Conn, cmd protocol.JoinLobby) error {
	st, err := c.lobbies.Join(member(conn), cmd.LobbyID)
	if err != nil {
		return err
	}
	c.reg.SetLobby(conn.ID, st.LobbyID)
	c.logger.Infof("Lobby %s: %s joined (%d/%d)", st.LobbyID, conn.ID, len(st.Members), st.MaxPlayers)
	c.hub.BroadcastToLobby(st.LobbyID, protocol.LobbyStateUpdate{State: st})
	c.broadcastList()
	return nil
}

// leaveLobby also takes the player out of a running game; there is no way
// back in.
func (c *Coordinator) leaveLobby(conn registry.Conn) error {
	if _, in := c.lobbies.LobbyOf(conn.ID); !in {
		return apperr.ErrNotInLobby
	}
	c.leaveGame(conn)

	st, deleted, err := c.lobbies.Leave(conn.ID)
	if err != nil {
		return err
	}
	c.reg.SetLobby(conn.ID, "")
	c.announceDeparture(conn, st, deleted)
	return nil
}

func (c *Coordinator) announceDeparture(conn registry.Conn, st lobby.State, deleted bool) {
	if deleted {
		c.logger.Infof("Lobby %s: %s left, lobby deleted", st.LobbyID, conn.ID)
	} else {
		c.logger.Infof("Lobby %s: %s left, host is %s", st.LobbyID, conn.ID, st.HostID)
		c.hub.BroadcastToLobby(st.LobbyID, protocol.LobbyStateUpdate{State: st})
	}
	c.broadcastList()
}

func (c *Coordinator) broadcastList() {
	c.hub.BroadcastToAll(protocol.LobbyListUpdate{Lobbies: c.lobbies.ListWaiting()})
}

// disconnect is the registry's deregistration hook. It runs once per
// connection, after the connection has left the registry, so nothing sent here
// reaches it.
func (c *Coordinator) disconnect(conn registry.Conn, reason string) {
	c.logger.WithField("reason", reason).Debugf("Connection %s: running departure", conn.ID)

	lobbyID, _ := c.lobbies.LobbyOf(conn.ID)
	// leaving the lobby first serializes against a StartGame in flight: either
	// the game was built with this player seated or it was not
	st, deleted, inLobby := c.lobbies.Remove(conn.ID)

	if g := c.findGame(conn, lobbyID); g != nil {
		c.playerGone(g, conn)
	}
	if inLobby {
		c.announceDeparture(conn, st, deleted)
	}
}

// findGame locates the running game conn is seated in, falling back to the
// lobby's game when the connection dropped before it was tagged.
func (c *Coordinator) findGame(conn registry.Conn, lobbyID string) *game.Game {
	if g := c.gameOf(conn); g != nil {
		return g
	}
	if lobbyID == "" {
		return nil
	}
	g := c.games.ByLobby(lobbyID)
	if g == nil {
		return nil
	}
	g.Mu.Lock()
	_, seated := g.Player(conn.ID)
	g.Mu.Unlock()
	if !seated {
		return nil
	}
	return g
}
