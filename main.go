package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example/merch-display/internal/backend"
	"example/merch-display/internal/config"
	"example/merch-display/internal/display"
	"example/merch-display/internal/logger"
	"example/merch-display/internal/pushchannel"
	"example/merch-display/internal/repository"
	"example/merch-display/internal/server"
	"example/merch-display/internal/settings"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file before reading configuration
	envErr := godotenv.Load()
	cfg := config.Load()

	logger.Init(cfg.LogMode)
	defer logger.Sync()

	logger.Log.Info("Starting merchandising display server")
	if envErr != nil {
		logger.Log.Warnw("No .env file found, using existing environment variables", "error", envErr)
	}

	// Initialize the local snapshot cache
	db, err := repository.Open(cfg)
	if err != nil {
		logger.Log.Fatalw("Failed to initialize database", "error", err)
	}
	defer repository.Close(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := backend.New(cfg.BackendURL, nil, backend.StaticToken(cfg.BackendToken))
	store := settings.NewStore(client, db)
	if _, err := store.Load(ctx); err != nil {
		logger.Log.Warnw("Starting with default settings", "error", err)
	}
	go store.Watch(ctx, cfg.SettingsRefresh)

	channel := pushchannel.New(cfg.SocketURL, pushchannel.Options{
		AuthToken:            cfg.SocketToken,
		ReconnectionDelay:    cfg.ReconnectDelay,
		ReconnectionAttempts: cfg.ReconnectionAttempts,
		Transports:           cfg.SocketTransports,
		Path:                 cfg.SocketPath,
	})
	sess := display.NewSession(channel, store, display.Options{
		Interval: cfg.CarouselInterval,
		DB:       db,
		Restore:  cfg.DisplayRestore,
	})
	if err := sess.Start(ctx); err != nil {
		logger.Log.Fatalw("Failed to start display session", "error", err)
	}

	app := server.NewApp(cfg, client, store, sess)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Log.Infow("HTTP server starting", "addr", cfg.HTTPAddr, "display", "/display", "backend_url", cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalw("Server error", "error", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	logger.Log.Infow("Shutdown signal received", "signal", s.String())

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP shutdown error", "error", err)
	}
	if err := sess.Stop(); err != nil {
		logger.Log.Errorw("Display session stop error", "error", err)
	}
	cancel()
	logger.Log.Info("Server stopped")
}
