// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the engine and its collaborators read from
// the environment. Values have sane defaults so a bare process still runs.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// MinPlayers is the minimum ring size to start (and keep) a game.
	MinPlayers int

	// WaitingTime is the baseline per-player reaction window in seconds.
	WaitingTime int

	// TimeRemovalAfterSkip is how many seconds a skip shaves off the
	// skipped player's waiting time.
	TimeRemovalAfterSkip int

	// MinFastTurnTime floors the fast-mode countdown in seconds, so a
	// decayed player still gets a minimum window.
	MinFastTurnTime int

	// DefaultMode is the mode new games start in.
	DefaultMode string

	// OpenLobby controls whether new games accept joins after start.
	OpenLobby bool

	// HandSize is the opening hand size.
	HandSize int

	RedisAddr        string
	RedisDB          int
	HistoryQueueName string

	DatabaseURL string

	// TokenExpire bounds issued session tokens; zero means no expiry.
	TokenExpire time.Duration

	// JWTPrivateKeyPath / JWTPublicKeyPath point at an ed25519 key pair on
	// disk. Empty paths mean a fresh pair is generated at startup, which
	// invalidates outstanding tokens across restarts.
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
}

// Load reads the environment. Call after godotenv has run.
func Load() Config {
	return Config{
		Addr:                 ":" + getEnv("PORT", "8080"),
		MinPlayers:           getEnvInt("MIN_PLAYERS", 2),
		WaitingTime:          getEnvInt("WAITING_TIME", 90),
		TimeRemovalAfterSkip: getEnvInt("TIME_REMOVAL_AFTER_SKIP", 20),
		MinFastTurnTime:      getEnvInt("MIN_FAST_TURN_TIME", 15),
		DefaultMode:          getEnv("DEFAULT_GAMEMODE", "classic"),
		OpenLobby:            getEnvBool("OPEN_LOBBY", true),
		HandSize:             getEnvInt("HAND_SIZE", 7),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		HistoryQueueName:     getEnv("HISTORY_QUEUE_NAME", "unobot_actions"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		TokenExpire:          getEnvDuration("TOKEN_EXPIRE_TIME", 72*time.Hour),
		JWTPrivateKeyPath:    getEnv("JWT_PRIVATE_KEY_PATH", ""),
		JWTPublicKeyPath:     getEnv("JWT_PUBLIC_KEY_PATH", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if v == "never" || v == "0" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
