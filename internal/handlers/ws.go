// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/boom/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	readLimit    = 64 << 10
	writeTimeout = 5 * time.Second
)

// Sessions is what the transport needs from the session layer.
type Sessions interface {
	Connect(userID, name string) (string, <-chan []byte, error)
	Handle(connID string, frame []byte) error
	MarkAlive(connID string)
	Disconnect(connID string)
	Stats() (connections, lobbies, games int)
}

// Server owns the HTTP surface: the /ws upgrade and /healthz.
type Server struct {
	sessions  Sessions
	identity  *Resolver
	origins   []string
	heartbeat time.Duration
	logger    *logrus.Logger
}

func NewServer(sessions Sessions, identity *Resolver, origins []string, heartbeat time.Duration, logger *logrus.Logger) *Server {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Server{
		sessions:  sessions,
		identity:  identity,
		origins:   origins,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Routes returns the server's handler with request logging applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", s.healthz)
	return middleware.LogMiddleware(s.logger)(mux)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	id, idErr := s.identity.Resolve(r)

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		s.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.CloseNow()

	if idErr != nil {
		s.logger.WithError(idErr).Warn("rejecting connection with invalid token")
		c.Close(InvalidAuthTokenError, "invalid auth token")
		return
	}
	c.SetReadLimit(readLimit)

	connID, out, err := s.sessions.Connect(id.UserID, id.Name)
	if err != nil {
		c.Close(ServerDrainingError, "server is shutting down")
		return
	}
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, r.URL.Path, connID, id.UserID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.writePump(ctx, c, connID, out)
	err = s.readPump(ctx, c, connID)

	s.sessions.Disconnect(connID)
	middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, connID, err)
}

// readPump hands every text frame to the session layer until the socket fails.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, connID string) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			s.logger.Warnf("Connection %s: ignoring non-text frame", connID)
			continue
		}
		// failures are reported to the client as Error events
		_ = s.sessions.Handle(connID, data)
	}
}

// writePump drains the outbound queue and pings every heartbeat. A closed queue
// means the session layer is done with the connection: whatever was queued has
// been written, so it closes the socket.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, connID string, out <-chan []byte) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-out:
			if !ok {
				c.Close(websocket.StatusGoingAway, "connection closed by server")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				s.logger.Debugf("Connection %s: write failed: %v", connID, err)
				c.CloseNow()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.heartbeat)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.logger.Debugf("Connection %s: ping failed: %v", connID, err)
				c.CloseNow()
				return
			}
			s.sessions.MarkAlive(connID)
		}
	}
}

type health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Lobbies     int    `json:"lobbies"`
	Games       int    `json:"games"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	conns, lobbies, games := s.sessions.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health{Status: "ok", Connections: conns, Lobbies: lobbies, Games: games})
}
