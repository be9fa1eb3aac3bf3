// internal/stats/stats.go
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder is the narrow face of the per-user statistics collaborator. The
// engine only ever calls this; the schema behind it is not its business.
type Recorder interface {
	CardPlayed(ctx context.Context, userID int64)
	GameFinished(ctx context.Context, userID int64, firstPlace bool)
}

// Noop satisfies Recorder when no stats backend is configured.
type Noop struct{}

func (Noop) CardPlayed(context.Context, int64) {}

func (Noop) GameFinished(context.Context, int64, bool) {}

// Store records statistics into Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Connect builds a Store from a connection URL and verifies it with a ping.
func Connect(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("stats db ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// CardPlayed bumps the user's played-card counter.
func (s *Store) CardPlayed(ctx context.Context, userID int64) {
	_, _ = s.pool.Exec(ctx, `
		INSERT INTO user_stats (user_id, cards_played)
		VALUES ($1, 1)
		ON CONFLICT (user_id)
		DO UPDATE SET cards_played = user_stats.cards_played + 1
	`, userID)
}

// GameFinished bumps the user's finished-game counter and, when they placed
// first, their first-place counter.
func (s *Store) GameFinished(ctx context.Context, userID int64, firstPlace bool) {
	first := 0
	if firstPlace {
		first = 1
	}
	_, _ = s.pool.Exec(ctx, `
		INSERT INTO user_stats (user_id, games_played, first_places)
		VALUES ($1, 1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET games_played = user_stats.games_played + 1,
		              first_places = user_stats.first_places + $2
	`, userID, first)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
