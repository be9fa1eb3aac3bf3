// cmd/historian/main.go runs the out-of-process historian: it pops action
// records from the Redis queue the engine publishes to and persists them to
// PostgreSQL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/unobot/unobot/internal/config"
	"github.com/unobot/unobot/internal/historian"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to create pgx pool: %v", err)
	}
	defer pool.Close()

	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.RedisDB})
	defer rdb.Close()

	batchSize := envInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := envInt("HISTORIAN_FLUSH_MS", 500)

	hs := historian.New(rdb, pool, cfg.HistoryQueueName, batchSize, time.Duration(flushMs)*time.Millisecond, logger)
	go hs.Run()
	logger.WithField("queue", cfg.HistoryQueueName).Info("historian started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	hs.Stop()
	logger.Info("historian shutdown complete")
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
