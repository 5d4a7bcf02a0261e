package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stash/internal/server/api"
	"stash/internal/server/auth"
	"stash/internal/server/config"
	"stash/internal/server/database"
	"stash/internal/server/service"
	"stash/internal/server/storage"
	"stash/internal/server/thumbnail"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"metadata_backend", cfg.MetadataBackend,
		"session_backend", cfg.SessionBackend,
		"storage_path", cfg.StoragePath,
		"session_ttl", cfg.SessionTTL,
	)

	// Connect to the metadata store
	ctx := context.Background()
	db, err := database.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open metadata store", "error", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	// Connect to the session store
	sessions, err := auth.OpenSessions(cfg)
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	// Initialize blob storage
	blobs := storage.NewFileSystemStore(cfg.StoragePath)
	if err := blobs.EnsureDir(); err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	slog.Info("blob storage initialized", "path", cfg.StoragePath)

	// Thumbnail pipeline: queue feeding a fixed worker pool
	pipeline := thumbnail.NewPipeline(db, blobs)
	queue := thumbnail.NewQueue(pipeline.Process, cfg.ThumbnailWorkers, cfg.ThumbnailQueue, cfg.ThumbnailRetries)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	queue.Start(workerCtx)

	// Services and access gateway
	gateway := auth.NewGateway(sessions, db, cfg.SessionTTL)
	fileSvc := service.NewFileService(db, blobs, queue)
	userSvc := service.NewUserService(db)

	// Setup HTTP router
	handler := api.NewHandler(fileSvc, userSvc, gateway, db, sessions)
	e := api.SetupRouter(workerCtx, handler, gateway, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop thumbnail workers
	workerCancel()
	queue.Wait()

	slog.Info("server exited cleanly")
}
