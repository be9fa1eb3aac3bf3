// internal/history/redis.go
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Record is one accepted game action, in the shape an out-of-process
// historian consumes from the queue.
type Record struct {
	GameID    uuid.UUID `json:"game_id"`
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Card      string    `json:"card,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// Publisher pushes accepted actions onto a Redis list. The engine never
// reads the queue back; a historian process drains it.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

// NewPublisher connects the Redis client and verifies it with a ping.
func NewPublisher(addr string, db int, queue string) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Publisher{rdb: rdb, queue: queue}, nil
}

// Publish serializes the record and LPUSHes it. Callers treat failures as
// log-and-continue; the queue never blocks game state.
func (p *Publisher) Publish(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal action record: %w", err)
	}
	if err := p.rdb.LPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push action record: %w", err)
	}
	return nil
}

// Close releases the Redis client.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
