package chessbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-chess-server/internal/adapter/chesspresenter"
	"github.com/park285/cheese-chess-server/internal/auth"
	"github.com/park285/cheese-chess-server/internal/config"
	"github.com/park285/cheese-chess-server/internal/msgcat"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/internal/presence"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	"github.com/park285/cheese-chess-server/internal/realtime"
	"github.com/park285/cheese-chess-server/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	Redis     *redis.Client
	Repo      storage.Repository
	Manager   *pvpchess.Manager
	Presence  *presence.Tracker
	Presenter *chesspresenter.Presenter
	Hub       *realtime.Hub
	Server    *realtime.Server
}

// New wires the game server. Redis is required; without DATABASE_URL an
// in-memory repository is used.
func New(cfg *config.AppConfig) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	var repo storage.Repository
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		if repo, err = storage.NewPostgres(cfg.DatabaseURL); err != nil {
			_ = rdb.Close()
			return nil, err
		}
	} else {
		obslog.L().Warn("storage_memory", zap.String("reason", "DATABASE_URL not set; results are not durable"))
		repo = storage.NewMemoryRepository()
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		_ = rdb.Close()
		_ = repo.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		_ = rdb.Close()
		_ = repo.Close()
		return nil, err
	}

	hub := realtime.NewHub()
	tracker := presence.NewTracker(rdb, repo)
	// single instance: nothing is connected yet, so every stored count is stale
	if err := tracker.Reset(ctx); err != nil {
		_ = rdb.Close()
		_ = repo.Close()
		return nil, err
	}
	manager := pvpchess.NewManager(repo)
	presenter := chesspresenter.NewPresenter(hub, chesspresenter.NewFormatter(msgs))
	presenter.AttachLobby(manager)
	manager.AttachNotifier(presenter)

	server := realtime.NewServer(hub, realtime.NewProtocol(manager, tracker, presenter), verifier, tracker, realtime.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SendBuffer:     cfg.WSSendBuffer,
		PingInterval:   cfg.WSPingInterval,
	})

	return &Deps{
		Redis:     rdb,
		Repo:      repo,
		Manager:   manager,
		Presence:  tracker,
		Presenter: presenter,
		Hub:       hub,
		Server:    server,
	}, nil
}

func (d *Deps) Close() error {
	var first error
	if d.Repo != nil {
		if err := d.Repo.Close(); err != nil {
			first = err
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
