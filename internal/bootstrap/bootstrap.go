// Package bootstrap loads configuration and builds the logger shared by the
// command line entry points.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"

	"gorm-multistatement/internal/config"
	"gorm-multistatement/pkg/logger"
)

// LoadConfig reads configuration from CONFIG_PATH (default ".") and validates it.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(ConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the application logger from cfg.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.NewWithConfig(logger.Config{
		Level:            cfg.Logger.Level,
		Format:           cfg.Logger.Format,
		OutputPath:       cfg.Logger.OutputPath,
		SlowQuerySeconds: cfg.Logger.SlowQuerySeconds,
		EnableSampling:   cfg.Logger.EnableSampling,
		ServiceName:      cfg.Logger.ServiceName,
		ServiceVersion:   cfg.Logger.ServiceVersion,
		Environment:      Environment(),
	})
}

// SyncLogger flushes l. Errors from syncing a terminal are ignored.
func SyncLogger(l *zap.Logger) error {
	err := l.Sync()
	if err == nil || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}

// ConfigPath returns the configuration path
func ConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "."
}

// Environment returns the application environment
func Environment() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return "development"
}
