// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/unobot/unobot/internal/history"
)

// Service drains action records from the Redis queue the engine publishes to
// and persists them to Postgres in batches. It runs out of process so a slow
// database never backpressures game state.
type Service struct {
	rdb        *redis.Client
	pool       *pgxpool.Pool
	queue      string
	batchSize  int
	flushDelay time.Duration
	log        *logrus.Logger

	batchMu sync.Mutex
	batch   []history.Record
	flushFn func([]history.Record)

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a historian service over an existing Redis client and pgx pool.
func New(rdb *redis.Client, pool *pgxpool.Pool, queue string, batchSize int, flushDelay time.Duration, log *logrus.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		rdb:        rdb,
		pool:       pool,
		queue:      queue,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		log:        log,
		batch:      make([]history.Record, 0, batchSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.flushFn = s.flushToDB
	return s
}

// Run blocks draining the queue until Stop is called.
func (s *Service) Run() {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.flush()
			return
		case <-ticker.C:
			s.flush()
		default:
			res, err := s.rdb.BLPop(s.ctx, 3*time.Second, s.queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
					s.log.WithError(err).Error("BLPop failed")
				}
				continue
			}
			if len(res) < 2 {
				continue
			}
			var rec history.Record
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				s.log.WithError(err).Warn("invalid action record, dropped")
				continue
			}
			s.append(rec)
		}
	}
}

// Stop shuts the service down, flushing whatever is pending.
func (s *Service) Stop() {
	s.cancel()
}

func (s *Service) append(rec history.Record) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()
	if full {
		s.flush()
	}
}

// flush hands the current batch to the flush function and resets it.
func (s *Service) flush() {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]history.Record, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	s.flushFn(pending)
}

// flushToDB writes one batch in a single transaction.
func (s *Service) flushToDB(pending []history.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := beginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range pending {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("failed to flush action batch")
		return
	}
	s.log.WithField("count", len(pending)).Debug("flushed action batch")
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec history.Record) error {
	q := `
		INSERT INTO game_actions (game_id, chat_id, user_id, action, card, played_at)
		VALUES ($1, $2, $3, $4, $5, to_timestamp($6))
	`
	_, err := tx.Exec(ctx, q, rec.GameID, rec.ChatID, rec.UserID, rec.Action, rec.Card, rec.Timestamp)
	return err
}

// beginTxFunc runs f inside a transaction, committing on success and rolling
// back on error.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}
