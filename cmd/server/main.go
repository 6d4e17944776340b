package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/scrimhub/internal/api"
	"github.com/dom/scrimhub/internal/config"
	"github.com/dom/scrimhub/internal/provision"
	"github.com/dom/scrimhub/internal/reconcile"
	"github.com/dom/scrimhub/internal/repository/postgres"
	"github.com/dom/scrimhub/internal/service"
	ws "github.com/dom/scrimhub/internal/websocket"
	"github.com/dom/scrimhub/pkg/logger"
	"github.com/dom/scrimhub/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer zlog.Sync()

	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatalw("connecting to database", "error", err)
	}
	repos := postgres.NewRepositories(db)

	var limiter ratelimit.Limiter = ratelimit.NewTokenBucket(cfg.RateLimitBurst, cfg.RateLimitRefill)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zlog.Fatalw("parsing redis url", "error", err)
		}
		limiter = ratelimit.NewRedisBucket(redis.NewClient(opts), cfg.RateLimitBurst, cfg.RateLimitRefill)
	}

	var provisioner provision.Provisioner = provision.Noop{}
	if cfg.GameServerURL != "" {
		provisioner = provision.NewHTTPProvisioner(cfg.GameServerURL, cfg.GameServerKey)
	}

	hub := ws.NewHub(zlog)
	go hub.Run()

	services := service.NewServices(repos, hub, provisioner, cfg, zlog)

	sweeper, err := reconcile.NewSweeper(repos.User, repos.Queue, services.Ready, zlog)
	if err != nil {
		zlog.Fatalw("building sweeper", "error", err)
	}
	if err := sweeper.Start(); err != nil {
		zlog.Fatalw("starting sweeper", "error", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(services, hub, limiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Infow("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatalw("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
	if err := sweeper.Stop(); err != nil {
		zlog.Warnw("stopping sweeper", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Errorw("forced shutdown", "error", err)
	}
}
