package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/dialogue-engine/internal/config"
	"github.com/jwebster45206/dialogue-engine/internal/handlers"
	"github.com/jwebster45206/dialogue-engine/internal/logger"
	"github.com/jwebster45206/dialogue-engine/internal/middleware"
	"github.com/jwebster45206/dialogue-engine/internal/services/events"
	"github.com/jwebster45206/dialogue-engine/internal/services/sessions"
	"github.com/jwebster45206/dialogue-engine/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Dialogue Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"data_dir", cfg.DataDir,
		"max_cascade_depth", cfg.MaxCascadeDepth)

	store := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log).
		WithCastFile(cfg.CastFile).
		WithTTL(cfg.GameStateTTL)

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		logger.WithError(log, err).Error("Failed to connect to storage")
		os.Exit(1)
	}

	graphs, err := store.ListGraphs(context.Background())
	if err != nil {
		logger.WithError(log, err).Error("Failed to list graphs")
		os.Exit(1)
	}
	log.Info("Graphs available", "count", len(graphs))

	broadcaster := events.NewBroadcaster(store.Client(), log)
	manager := sessions.NewManager(store, log).
		WithForwarder(broadcaster).
		WithMaxDepth(cfg.MaxCascadeDepth).
		WithAutoClose(cfg.AutoCloseDelay)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, manager, log))

	graphsHandler := handlers.NewGraphsHandler(log, store)
	mux.Handle("/v1/graphs", graphsHandler)
	mux.Handle("/v1/graphs/", graphsHandler)

	gameStateHandler := handlers.NewGameStateHandler(log, store, manager)
	mux.Handle("/v1/gamestate", gameStateHandler)
	mux.Handle("/v1/gamestate/", gameStateHandler)

	sessionsHandler := handlers.NewSessionsHandler(log, manager)
	mux.Handle("/v1/sessions", sessionsHandler)
	mux.Handle("/v1/sessions/", sessionsHandler)

	mux.Handle("/v1/events/gamestate/", handlers.NewEventsHandler(store.Client(), log))
	mux.Handle("/v1/ws/gamestate/", handlers.NewWSHandler(store.Client(), log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: SSE and WebSocket streams are long-lived
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// End hosted sessions so their gamestates are saved before Redis goes away
	manager.Shutdown(shutdownCtx)

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
