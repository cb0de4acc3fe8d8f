package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MegaGrindStone/stealth-web-ui/internal/handlers"
	"github.com/spf13/viper"
)

type config struct {
	Port     string         `mapstructure:"port"`
	Backend  backendConfig  `mapstructure:"backend"`
	Threads  threadsConfig  `mapstructure:"threads"`
	Waitlist waitlistConfig `mapstructure:"waitlist"`
	Markdown markdownConfig `mapstructure:"markdown"`
	Log      logConfig      `mapstructure:"log"`
	Models   []modelConfig  `mapstructure:"models"`
}

type backendConfig struct {
	URL string `mapstructure:"url"`
	// Timeout bounds each backend call. Zero leaves calls unbounded.
	Timeout time.Duration `mapstructure:"timeout"`
}

type threadsConfig struct {
	Max int `mapstructure:"max"`
}

type waitlistConfig struct {
	Path string `mapstructure:"path"`
}

type markdownConfig struct {
	Style string `mapstructure:"style"`
}

type logConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type modelConfig struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Available bool   `mapstructure:"available"`
}

// loadConfig reads config.yaml from the working directory or cfgDir. A missing file is not an
// error: every key has a default and can be set through STEALTH_ environment variables.
func loadConfig(cfgDir string) (config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(cfgDir)

	viper.SetEnvPrefix("stealth")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("port", "8080")
	viper.SetDefault("backend.url", "http://localhost:8000")
	viper.SetDefault("backend.timeout", time.Duration(0))
	viper.SetDefault("threads.max", 0)
	viper.SetDefault("waitlist.path", filepath.Join(cfgDir, "waitlist.db"))
	viper.SetDefault("markdown.style", "monokai")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("models", []map[string]any{
		{"id": "v1.5", "name": "v1.5 Beta", "available": true},
		{"id": "v2", "name": "v2", "available": false},
	})

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg config
	if err := viper.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if cfg.Backend.URL == "" {
		return config{}, errors.New("backend.url is required")
	}

	return cfg, nil
}

func (c config) models() []handlers.Model {
	models := make([]handlers.Model, len(c.Models))
	for i, m := range c.Models {
		models[i] = handlers.Model{ID: m.ID, Name: m.Name, Available: m.Available}
	}
	return models
}

func (l logConfig) logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
