package main

import (
	"context"
	"ctchen222/tictactoe-arena/internal/config"
	"ctchen222/tictactoe-arena/internal/db"
	"ctchen222/tictactoe-arena/internal/events"
	"ctchen222/tictactoe-arena/internal/hub"
	"ctchen222/tictactoe-arena/internal/logger"
	"ctchen222/tictactoe-arena/internal/server"
	"ctchen222/tictactoe-arena/internal/telemetry"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize telemetry
	shutdown, err := telemetry.InitOtel(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()

	logger.Init(cfg.Log)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Redis.Enabled {
		rdb, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			slog.Error("failed to initialize redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, cfg.Redis.EventsChannel)
		slog.Info("Publishing match events to redis", "redis.addr", cfg.Redis.Addr, "channel", cfg.Redis.EventsChannel)
	}

	// Create hub
	h, err := hub.New(cfg.Hub, publisher)
	if err != nil {
		slog.Error("failed to create hub", "error", err)
		os.Exit(1)
	}
	hubCtx, stopHub := context.WithCancel(context.Background())
	go h.Run(hubCtx)

	srv := server.NewServer(h, cfg)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Engine(),
	}

	go func() {
		slog.Info("http server started", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ListenAndServe failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("Shutting down server...")

	// Shutdown does not track hijacked websocket connections; stopping the hub closes them.
	stopHub()
	<-h.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exiting")
}
