package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"github.com/bitmitra/realtime/internal/config"
	"github.com/bitmitra/realtime/internal/handler"
	"github.com/bitmitra/realtime/internal/repository"
	chatservice "github.com/bitmitra/realtime/internal/service/chat"
	"github.com/bitmitra/realtime/internal/service/presence"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.LogLevel}))
	slog.SetDefault(logger)

	db, err := badger.Open(badger.DefaultOptions(cfg.Storage.DataDir).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("closing message store")
		_ = db.Close()
	}()

	messages := repository.NewMessageRepository(db, logger, cfg.Storage.LimitMessages)
	broadcaster := presence.NewBroadcaster(logger)
	registry := presence.NewRegistry(broadcaster, logger)
	chatService := chatservice.NewService(messages, registry, logger)

	router := handler.NewRouter(cfg.Server, registry, chatService, logger)

	logger.Info("realtime backend listening", "addr", cfg.Server.Addr)
	return runServer(ctx, &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	})
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
