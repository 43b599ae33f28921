package cmd

import (
	"fmt"

	"github.com/zyrian-nova/todo-app/internal/ai"
	"github.com/zyrian-nova/todo-app/internal/config"
	"github.com/zyrian-nova/todo-app/internal/decompose"
	"github.com/zyrian-nova/todo-app/internal/logging"
)

// newBackend is swapped in tests to avoid reaching a real model server.
var newBackend = ai.NewFromConfig

// loadConfig reads and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger opens the configured log sink.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewLoggerWithRotation(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return logger, nil
}

// decomposeOptions maps configuration onto decomposer options.
func decomposeOptions(cfg config.DecomposeConfig) decompose.Options {
	return decompose.Options{
		MinSubtasks:      cfg.MinSubtasks,
		MaxSubtasks:      cfg.MaxSubtasks,
		MaxSubtaskLength: cfg.MaxSubtaskLength,
		Temperature:      cfg.Temperature,
	}
}

// newDecomposer builds the configured backend and wraps it in a Decomposer.
func newDecomposer(cfg *config.Config, logger *logging.Logger) (*decompose.Decomposer, ai.Backend, error) {
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %q backend: %w", cfg.AI.Backend, err)
	}
	logger.Debug("model backend ready", "backend", string(backend.Name()), "model", backend.Model())
	return decompose.New(backend, decomposeOptions(cfg.Decompose), logger), backend, nil
}
