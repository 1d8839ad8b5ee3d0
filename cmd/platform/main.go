// Package main boots the eve platform service and wires application dependencies.
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

	"github.com/easeaico/eve/internal/config"
	"github.com/easeaico/eve/internal/generation"
	"github.com/easeaico/eve/internal/memory"
	"github.com/easeaico/eve/internal/models"
	"github.com/easeaico/eve/internal/seed"
	"github.com/easeaico/eve/internal/server"
	"github.com/easeaico/eve/internal/storage"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration:\n%v", err)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Info("configuration loaded", "http_addr", cfg.HTTPAddr, "log_level", level.String(), "model_timeout", cfg.ModelTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.AutoMigrate(ctx); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	runtime := config.NewRuntimeService(store.RuntimeConfig)

	if cfg.SeedFile != "" {
		f, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			log.Fatalf("failed to load seed file: %v", err)
		}
		if _, err := seed.Apply(ctx, store, runtime, f); err != nil {
			log.Fatalf("failed to apply seed: %v", err)
		}
	}

	runtimeCfg, err := runtime.Current(ctx)
	if err != nil {
		log.Fatalf("failed to load runtime config: %v", err)
	}
	slog.Info("runtime config loaded", "mode", runtimeCfg.Mode, "model", runtimeCfg.ModelName, "memory_length", runtimeCfg.ConversationMemoryLength)

	provider := models.NewProvider(models.Credentials{
		OllamaBaseURL:    cfg.OllamaBaseURL,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		GoogleAPIKey:     cfg.GoogleAPIKey,
		XAIAPIKey:        cfg.XAIAPIKey,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
	})

	generator, err := generation.New(generation.Deps{
		Conversations: store.Conversations,
		Characters:    store.Characters,
		Users:         store.Users,
		Messages:      store.Messages,
		MemoryNotes:   store.MemoryNotes,
		Tx:            store,
		Config:        runtime,
		Models:        provider,
	}, generation.Options{
		ModelTimeout: cfg.ModelTimeout,
		Gate:         memory.NewGate(cfg.MemoryBar),
	})
	if err != nil {
		log.Fatalf("failed to create generator: %v", err)
	}

	e := server.New(server.NewHandler(generator, store, runtime))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.HTTPAddr)
		errCh <- e.Start(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
		return
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err.Error())
	}
	slog.Info("shutdown complete")
}
