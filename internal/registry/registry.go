// internal/registry/registry.go
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Deregistration reasons.
const (
	ReasonClosed       = "closed"
	ReasonBackpressure = "backpressure"
	ReasonTimeout      = "timeout"
	ReasonShutdown     = "shutdown"
)

// Conn is a snapshot of one live connection's session metadata.
type Conn struct {
	ID          string
	UserID      string
	Name        string
	LobbyID     string
	GameID      string
	Alive       bool
	LastSeen    time.Time
	ConnectedAt time.Time
}

type entry struct {
	conn    Conn
	out     chan []byte
	strikes atomic.Int32
}

// Registry is the only place that knows which sockets exist. Sends happen
// under the read lock and channel closes under the write lock, so a send never
// hits a closed queue.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*entry

	queueSize    int
	strikeLimit  int
	onDeregister func(c Conn, reason string)
	logger       *logrus.Logger
	now          func() time.Time
}

// New builds a registry whose connections each get an outbound queue of
// queueSize frames. A connection whose queue is full strikeLimit sends in a
// row is deregistered.
func New(queueSize, strikeLimit int, logger *logrus.Logger) *Registry {
	if queueSize <= 0 {
		queueSize = 64
	}
	if strikeLimit <= 0 {
		strikeLimit = 3
	}
	return &Registry{
		conns:       make(map[string]*entry),
		queueSize:   queueSize,
		strikeLimit: strikeLimit,
		logger:      logger,
		now:         time.Now,
	}
}

// OnDeregister sets the hook run once per connection after it is removed.
// Set it before the first Register.
func (r *Registry) OnDeregister(fn func(c Conn, reason string)) {
	r.onDeregister = fn
}

// Register adds a connection and returns its ID and outbound queue. The queue
// is closed when the connection is deregistered.
func (r *Registry) Register(userID, name string) (string, <-chan []byte) {
	now := r.now()
	e := &entry{
		conn: Conn{
			ID:          uuid.NewString(),
			UserID:      userID,
			Name:        name,
			Alive:       true,
			LastSeen:    now,
			ConnectedAt: now,
		},
		out: make(chan []byte, r.queueSize),
	}
	r.mu.Lock()
	r.conns[e.conn.ID] = e
	r.mu.Unlock()
	return e.conn.ID, e.out
}

func (r *Registry) Lookup(id string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return Conn{}, false
	}
	return e.conn, true
}

// Deregister removes the connection and closes its queue. Only the first call
// for an ID does anything; it runs the OnDeregister hook outside the lock.
func (r *Registry) Deregister(id, reason string) bool {
	r.mu.Lock()
	e, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, id)
	close(e.out)
	c := e.conn
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"conn": id, "user": c.UserID, "reason": reason}).Debug("connection deregistered")
	}
	if r.onDeregister != nil {
		r.onDeregister(c, reason)
	}
	return true
}

// Send queues frame without blocking. It reports false when the connection is
// gone or its queue is full.
func (r *Registry) Send(id string, frame []byte) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	if !ok {
		r.mu.RUnlock()
		return false
	}
	select {
	case e.out <- frame:
		e.strikes.Store(0)
		r.mu.RUnlock()
		return true
	default:
	}
	n := int(e.strikes.Add(1))
	r.mu.RUnlock()

	if n == r.strikeLimit {
		// deregistering takes the write lock and runs departure logic, which
		// may itself broadcast, so it cannot happen on this goroutine
		go r.Deregister(id, ReasonBackpressure)
	}
	return false
}

// MarkAlive records that the connection was heard from.
func (r *Registry) MarkAlive(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.conn.LastSeen = r.now()
		e.conn.Alive = true
	}
}

// SweepDead flags and returns the connections not heard from within threshold.
// Callers deregister them.
func (r *Registry) SweepDead(threshold time.Duration) []string {
	cutoff := r.now().Add(-threshold)
	r.mu.Lock()
	defer r.mu.Unlock()
	var dead []string
	for id, e := range r.conns {
		if e.conn.LastSeen.Before(cutoff) {
			e.conn.Alive = false
			dead = append(dead, id)
		}
	}
	return dead
}

func (r *Registry) SetLobby(id, lobbyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.conn.LobbyID = lobbyID
	}
}

func (r *Registry) SetGame(id, gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.conn.GameID = gameID
	}
}

// Targets returns the IDs of every connection matching filter. A nil filter
// matches all.
func (r *Registry) Targets(filter func(Conn) bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id, e := range r.conns {
		if filter == nil || filter(e.conn) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Drain closes every queue without running the OnDeregister hook. Write pumps
// flush what is already queued and then close their sockets.
func (r *Registry) Drain() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.conns)
	for id, e := range r.conns {
		delete(r.conns, id)
		close(e.out)
	}
	return n
}
