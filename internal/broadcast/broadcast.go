// internal/broadcast/broadcast.go
package broadcast

import (
	"github.com/jason-s-yu/boom/internal/protocol"
	"github.com/jason-s-yu/boom/internal/registry"
	"github.com/sirupsen/logrus"
)

// Broadcaster delivers events to groups of connections. Delivery is
// fire-and-forget: a dead or slow recipient never stops the others.
// A multi-process implementation (Redis, NATS) satisfies the same interface.
type Broadcaster interface {
	BroadcastToLobby(lobbyID string, ev protocol.Event, exclude ...string)
	BroadcastToGame(gameID string, ev protocol.Event, exclude ...string)
	BroadcastToAll(ev protocol.Event, exclude ...string)
	SendTo(connID string, ev protocol.Event)
}

// Hub is the single-process Broadcaster backed by the connection registry.
type Hub struct {
	reg    *registry.Registry
	logger *logrus.Logger
}

func NewHub(reg *registry.Registry, logger *logrus.Logger) *Hub {
	return &Hub{reg: reg, logger: logger}
}

func (h *Hub) BroadcastToLobby(lobbyID string, ev protocol.Event, exclude ...string) {
	if lobbyID == "" {
		return
	}
	h.deliver(h.reg.Targets(func(c registry.Conn) bool { return c.LobbyID == lobbyID }), ev, exclude)
}

func (h *Hub) BroadcastToGame(gameID string, ev protocol.Event, exclude ...string) {
	if gameID == "" {
		return
	}
	h.deliver(h.reg.Targets(func(c registry.Conn) bool { return c.GameID == gameID }), ev, exclude)
}

func (h *Hub) BroadcastToAll(ev protocol.Event, exclude ...string) {
	h.deliver(h.reg.Targets(nil), ev, exclude)
}

func (h *Hub) SendTo(connID string, ev protocol.Event) {
	h.deliver([]string{connID}, ev, nil)
}

func (h *Hub) deliver(targets []string, ev protocol.Event, exclude []string) {
	personal, isPersonal := ev.(protocol.Personalized)

	var shared []byte
	if !isPersonal {
		frame, err := protocol.Encode(ev)
		if err != nil {
			h.logger.WithError(err).Errorf("Broadcast: failed to encode %s", ev.EventType())
			return
		}
		shared = frame
	}

	for _, id := range targets {
		if excluded(id, exclude) {
			continue
		}
		frame := shared
		if isPersonal {
			var err error
			frame, err = protocol.Encode(personal.For(id))
			if err != nil {
				h.logger.WithError(err).Errorf("Broadcast: failed to encode %s for %s", ev.EventType(), id)
				continue
			}
		}
		if !h.reg.Send(id, frame) {
			h.logger.Debugf("Broadcast: dropped %s for connection %s", ev.EventType(), id)
		}
	}
}

func excluded(id string, exclude []string) bool {
	for _, x := range exclude {
		if x == id {
			return true
		}
	}
	return false
}
