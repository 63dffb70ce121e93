package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"lifelog/internal/app/server/api"
	"lifelog/internal/app/server/config"
	"lifelog/internal/infrastructure/storage/memory"
	"lifelog/internal/infrastructure/storage/postgres"
	"lifelog/internal/utils/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Auth.Token == "" {
		log.Warn("API_TOKEN is empty, every protected request will be rejected with 500")
	}

	deps, closeStorage, err := buildDeps(ctx, cfg, log)
	if err != nil {
		log.Error("failed to init storage", "error", err)
		os.Exit(1)
	}
	defer closeStorage()

	srv := &http.Server{
		Addr:              cfg.Server.RunAddress,
		Handler:           api.New(cfg, deps, log),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
	}

	go func() {
		log.Info("starting server", "address", cfg.Server.RunAddress, "env", cfg.Env, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped with error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func buildDeps(ctx context.Context, cfg *config.Config, log *slog.Logger) (api.Deps, func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return api.Deps{Repository: memory.NewEntryRepository()}, func() {}, nil
	}

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		return api.Deps{}, nil, err
	}

	deps := api.Deps{
		Repository:   postgres.NewEntryRepository(storage, log),
		StorageCheck: storage.Ping,
	}
	return deps, func() { _ = storage.Close() }, nil
}
