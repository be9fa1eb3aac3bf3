// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/unobot/unobot/internal/auth"
	"github.com/unobot/unobot/internal/config"
	"github.com/unobot/unobot/internal/game"
	"github.com/unobot/unobot/internal/gateway"
	"github.com/unobot/unobot/internal/handlers"
	"github.com/unobot/unobot/internal/history"
	"github.com/unobot/unobot/internal/middleware"
	"github.com/unobot/unobot/internal/registry"
	"github.com/unobot/unobot/internal/stats"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if cfg.JWTPrivateKeyPath != "" && cfg.JWTPublicKeyPath != "" {
		if err := auth.InitFromPath(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenExpire); err != nil {
			log.Fatalf("failed to load signing keys: %v", err)
		}
	} else {
		if err := auth.Init(cfg.TokenExpire); err != nil {
			log.Fatalf("failed to generate signing keys: %v", err)
		}
	}

	reg := registry.New(game.Options{
		Mode:        game.Mode(cfg.DefaultMode),
		WaitingTime: cfg.WaitingTime,
		HandSize:    cfg.HandSize,
		Open:        cfg.OpenLobby,
	})

	hub := handlers.NewHub(logger)
	gw := gateway.New(reg, hub, gateway.Config{
		MinPlayers:           cfg.MinPlayers,
		TimeRemovalAfterSkip: cfg.TimeRemovalAfterSkip,
		MinFastTurnTime:      cfg.MinFastTurnTime,
	}, logger)
	hub.BindGateway(gw)

	// Optional collaborators degrade to disabled when unconfigured.
	if cfg.RedisAddr != "" {
		pub, err := history.NewPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.HistoryQueueName)
		if err != nil {
			logger.WithError(err).Warn("action history disabled")
		} else {
			defer pub.Close()
			gw.UseHistory(pub)
			logger.WithField("queue", cfg.HistoryQueueName).Info("action history enabled")
		}
	}
	if cfg.DatabaseURL != "" {
		store, err := stats.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Warn("statistics disabled")
		} else {
			defer store.Close()
			gw.UseStats(store)
			logger.Info("statistics enabled")
		}
	}

	srv := handlers.NewServer(gw, reg, hub, logger)
	mux := http.NewServeMux()
	srv.Routes(mux, middleware.LogMiddleware(logger))

	logger.Infof("Running on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
