package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MegaGrindStone/stealth-web-ui/internal/devbackend"
	"gopkg.in/yaml.v3"
)

func main() {
	cfgPath := flag.String("config", "devbackend.yaml", "path to the dev backend config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := run(*cfgPath, logger); err != nil {
		logger.Error("Dev backend stopped", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(cfgPath string, logger *slog.Logger) error {
	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		return fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return fmt.Errorf("error decoding config file: %w", err)
	}

	answerer, err := cfg.LLM.answerer(cfg.SystemPrompt, cfg.Parameters, logger.With(slog.String("module", "llm")))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           devbackend.NewServer(answerer, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Dev backend starting", slog.String("port", cfg.Port))
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
		return srv.Shutdown(ctx)
	}
}
