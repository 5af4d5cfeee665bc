package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	AllowedOrigins []string
	MessagesDir    string

	WSSendBuffer    int
	WSPingInterval  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set win over the file.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		ListenAddr:      ":8080",
		WSSendBuffer:    32,
		WSPingInterval:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	cfg.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	cfg.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if n, ok := positiveInt("WS_SEND_BUFFER"); ok {
		cfg.WSSendBuffer = n
	}
	if n, ok := positiveInt("WS_PING_INTERVAL_SEC"); ok {
		cfg.WSPingInterval = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("SHUTDOWN_TIMEOUT_SEC"); ok {
		cfg.ShutdownTimeout = time.Duration(n) * time.Second
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

// positiveInt ignores unset, malformed and non-positive values.
func positiveInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
