package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sefazor/bnpl-checkout/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	cfg := config.LoadConfig()

	app, cleanup, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer cleanup()

	if cfg.JWTSecret == "" {
		app.logger.Warn("JWT_SECRET is not set, every checkout request will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Starting checkout host",
			zap.String("port", cfg.Port),
			zap.String("provider", cfg.Provider),
			zap.String("environment", cfg.Environment),
		)
		errCh <- app.app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			app.logger.Error("Server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		app.logger.Info("Shutting down")
		if err := app.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			app.logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}
