package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/existflow/irontodo/internal/logger"
	"github.com/existflow/irontodo/server"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://localhost:5432/irontodo?sslmode=disable"
	}

	logConfig := logger.DefaultConfig()
	logConfig.Level = logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	logConfig.FilePath = os.Getenv("LOG_FILE")
	logConfig.Console = true
	if err := logger.Init(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, dbURL)
	if err != nil {
		logger.Error("Failed to create server", logger.F("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("Error closing server", logger.F("error", err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("IronTodo server starting", logger.F("port", port))
		errCh <- srv.Start(":" + port)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", logger.F("error", err))
		}
		return
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", logger.F("error", err))
	}
}
