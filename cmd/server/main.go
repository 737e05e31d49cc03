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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sujalbistaa/guestboard/internal/board"
	"github.com/sujalbistaa/guestboard/internal/config"
	"github.com/sujalbistaa/guestboard/internal/events"
	routes "github.com/sujalbistaa/guestboard/internal/http"
	"github.com/sujalbistaa/guestboard/internal/logging"
	"github.com/sujalbistaa/guestboard/internal/store"
	"github.com/sujalbistaa/guestboard/internal/stream"
)

func main() {
	// A missing .env is fine; production sets the environment directly.
	envErr := godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	if envErr != nil {
		logger.Info("no .env file found, reading from environment")
	}

	st, err := store.Open(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	// One bus and one stream endpoint for the life of the process.
	bus := events.NewBus(logger)
	streams := stream.NewEndpoint(logger, cfg.StreamBuffer)
	svc := board.NewService(st, bus, logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.LogFormat == "json" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupRoutes(ctx, router, cfg, svc, bus, streams, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	// Push connections never go idle on their own.
	srv.RegisterOnShutdown(streams.Close)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exiting")
}
