// Package main is the entry point for the docnum API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"docnum/internal/config"
	"docnum/internal/domain/numbering"
	v1 "docnum/internal/infrastructure/http/v1"
	"docnum/internal/infrastructure/storage"
	"docnum/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("DOCNUM_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting docnum server", "store", cfg.Store.Driver)

	// --- Counter store ---
	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		logger.Fatal(ctx, "failed to open counter store", "error", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnw("failed to close counter store", "error", err)
		}
	}()

	if err := store.Ping(ctx); err != nil {
		logger.Fatal(ctx, "failed to ping counter store", "error", err)
	}

	// --- Numbering service ---
	service := numbering.NewService(store, cfg.NumberingOptions())

	// --- Router ---
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := v1.NewRouter(v1.RouterConfig{
		Service:     service,
		StoreDriver: cfg.Store.Driver,
		Logger:      log.WithComponent("http"),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server starting", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			log.Errorw("server failed", "error", err)
		}
	}

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
