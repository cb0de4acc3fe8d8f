package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MegaGrindStone/stealth-web-ui/internal/backend"
	"github.com/MegaGrindStone/stealth-web-ui/internal/handlers"
	"github.com/MegaGrindStone/stealth-web-ui/internal/services"
)

func main() {
	if err := run(); err != nil {
		defaultLogger().Error("Server stopped", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	userCfgDir, err := os.UserConfigDir()
	if err != nil {
		return fmt.Errorf("error getting user config dir: %w", err)
	}
	cfgDir := filepath.Join(userCfgDir, "stealthwebui")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	cfg, err := loadConfig(cfgDir)
	if err != nil {
		return err
	}
	logger := cfg.Log.logger(os.Stdout)
	slog.SetDefault(logger)

	waitlist, err := services.NewWaitlist(cfg.Waitlist.Path)
	if err != nil {
		return err
	}
	defer waitlist.Close()

	client := backend.NewClient(cfg.Backend.URL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(logger),
	)

	m, err := handlers.NewMain(handlers.Config{
		Transport:  client,
		Waitlist:   waitlist,
		Renderer:   services.NewMarkdown(cfg.Markdown.Style),
		Models:     cfg.models(),
		MaxThreads: cfg.Threads.Max,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("backend", cfg.Backend.URL))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				return fmt.Errorf("forcing server close: %w", err)
			}
		}
	}

	return nil
}
