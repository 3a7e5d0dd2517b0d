package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/database"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/telemetry"
)

func main() {
	var (
		action     = flag.String("action", "up", "Migration action: up, down, version")
		steps      = flag.Int("steps", 0, "Number of migrations to apply or roll back (0 = all)")
		configPath = flag.String("config", config.DefaultConfigFile, "Path to configuration file")
		dbURL      = flag.String("database-url", "", "Overrides database.url from config")
	)
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := telemetry.NewSlogLogger(os.Stderr, cfg.LogLevel)

	url := cfg.Database.URL
	if *dbURL != "" {
		url = *dbURL
	}

	if err := run(*action, *steps, url, logger); err != nil {
		logger.Error("migration failed", "action", *action, "error", err)
		os.Exit(1)
	}
}

func run(action string, steps int, url string, logger *slog.Logger) error {
	if steps < 0 {
		return fmt.Errorf("steps must not be negative")
	}
	switch action {
	case "up", "down", "version":
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	m, err := database.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("failed to close migrator", "error", err)
		}
	}()

	switch action {
	case "up":
		if err := m.UpSteps(steps); err != nil {
			return err
		}
	case "down":
		if err := m.Down(steps); err != nil {
			return err
		}
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("migration complete", "action", action, "version", version, "dirty", dirty)
	return nil
}
