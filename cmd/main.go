package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/app/registry"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/app/server"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/app/worker"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/config"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/services"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/platform/logger"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/platform/telemetry"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/plugins/postgres"
	redisPlugin "github.com/garthpuckerin/dreamcatcher-sub000/internal/plugins/redis"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL)
		return
	}
	log.Info("redis connected")

	// Adapters
	userRepo := postgres.NewUserRepository(pdb)
	dreamRepo := postgres.NewDreamRepository(pdb)
	fragmentRepo := postgres.NewFragmentRepository(pdb)
	todoRepo := postgres.NewTodoRepository(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb, cfg.Realtime.PresenceTTL)
	listener := postgres.NewChangeListener(log, cfg.Postgres.DSN)

	// Core Services
	hub := registry.NewRegistry()
	userSvc := services.NewUserService(log, userRepo)
	tokenSvc := services.NewTokenService(cfg.SecretToken)
	roomSvc := services.NewRoomService(log, hub, presStore, userSvc,
		cfg.Realtime.PresenceTTL, cfg.Realtime.HeartbeatInterval)

	// Change feed fan-out
	feed := worker.NewFeedWorker(log, listener, hub, cfg.Realtime.FeedChannel)
	go func() {
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("feed worker stopped", "err", err)
		}
	}()

	// Server
	port := strings.TrimPrefix(cfg.Service.Add, ":")
	srv := server.NewServer(port, log, userSvc, tokenSvc, roomSvc, hub,
		dreamRepo, fragmentRepo, todoRepo)
	if err := srv.Start(); err != nil {
		log.Error("server stopped", "err", err)
	}
}
