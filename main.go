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

	"streamlify/config"
	"streamlify/config/database"
	"streamlify/internal/idea/repository"
	"streamlify/internal/idea/service"
	"streamlify/pkg/logger"
	"streamlify/router"
	"streamlify/socket"
)

type backend interface {
	repository.IdeaStore
	repository.VoteLedger
}

func main() {
	cfg, foundEnv, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	if !foundEnv {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Sugar.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer closeStore()

	// The Hub pushes the updated idea list to every connected board.
	hub := socket.NewHub(store)
	go hub.Run(ctx)

	svc := service.NewIdeaService(store, store, hub, cfg.IsAdmin)
	handler := router.Setup(svc, hub, router.Options{
		JWTSecret:     []byte(cfg.JWTSecret),
		AllowedOrigin: cfg.AllowedOrigin,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Sugar.Errorf("Server shutdown: %v", err)
		}
	}()

	logger.Sugar.Infow("Streamlify backend listening", "port", cfg.Port, "store", cfg.StoreBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Sugar.Fatalf("Server closed: %v", err)
	}
	logger.Sugar.Info("Server closed")
}

func openStore(ctx context.Context, cfg config.Config) (backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Sugar.Info("Database schema ready")
		return store, func() { db.Close() }, nil
	default:
		store := repository.NewFileStore(cfg.DataFile, cfg.LedgerFile)
		// Touch the file so a bad path fails at start-up instead of on the first request.
		if _, err := store.List(ctx); err != nil {
			return nil, nil, err
		}
		logger.Sugar.Infow("Using JSON file store", "path", cfg.DataFile, "ledger", cfg.LedgerFile)
		return store, func() {}, nil
	}
}
