package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/config"
)

// NewLogger builds a JSON production logger, or a console logger in development.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		zc.Level = level
	}
	return zc.Build()
}
