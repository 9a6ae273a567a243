// internal/outbox/outbox.go
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list external consumers (notifications,
// history) read game lifecycle records from.
const DefaultQueueName = "boom_game_events"

// Record kinds.
const (
	KindGameStarted      = "gameStarted"
	KindRoundEnded       = "roundEnded"
	KindPlayerEliminated = "playerEliminated"
	KindGameOver         = "gameOver"
)

// Record is one game lifecycle fact handed to external collaborators.
type Record struct {
	Kind      string         `json:"kind"`
	GameID    string         `json:"game_id"`
	LobbyID   string         `json:"lobby_id"`
	Round     int            `json:"round,omitempty"`
	PlayerIDs []string       `json:"player_ids,omitempty"`
	UserIDs   []string       `json:"user_ids,omitempty"`
	WinnerID  string         `json:"winner_id,omitempty"`
	Scores    map[string]int `json:"scores,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Sink accepts records without blocking the caller.
type Sink interface {
	Enqueue(rec Record) bool
}

// Discard is the Sink used when no Redis is configured.
type Discard struct{}

func (Discard) Enqueue(Record) bool { return true }

// pusher is the slice of *redis.Client the outbox needs.
type pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Outbox buffers records and pushes them to a Redis list from its own goroutine,
// so game locks are never held across network calls.
type Outbox struct {
	client  pusher
	queue   string
	records chan Record
	logger  *logrus.Logger
}

func New(client pusher, queue string, buffer int, logger *logrus.Logger) *Outbox {
	if queue == "" {
		queue = DefaultQueueName
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Outbox{
		client:  client,
		queue:   queue,
		records: make(chan Record, buffer),
		logger:  logger,
	}
}

// Connect opens a Redis client and checks it answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Enqueue stamps and buffers rec. A full buffer drops the record.
func (o *Outbox) Enqueue(rec Record) bool {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	select {
	case o.records <- rec:
		return true
	default:
		o.logger.WithFields(logrus.Fields{"game": rec.GameID, "kind": rec.Kind}).Warn("Outbox: buffer full, dropping record")
		return false
	}
}

// Run pushes buffered records until ctx is done, then flushes what is left.
func (o *Outbox) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.flush()
			return
		case rec := <-o.records:
			if err := o.publish(ctx, rec); err != nil {
				o.logger.WithError(err).WithField("game", rec.GameID).Error("Outbox: publish failed")
			}
		}
	}
}

func (o *Outbox) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-o.records:
			if err := o.publish(ctx, rec); err != nil {
				o.logger.WithError(err).WithField("game", rec.GameID).Error("Outbox: publish failed during flush")
			}
		default:
			return
		}
	}
}

// publish serializes rec and pushes it onto the queue.
func (o *Outbox) publish(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox record: %w", err)
	}
	pushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := o.client.RPush(pushCtx, o.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", o.queue, err)
	}
	return nil
}
