// Package app provides logger initialization.
package app

import (
	"github.com/guttosm/offline-cache/config"
	"github.com/guttosm/offline-cache/internal/logger"
)

// InitializeLogger initializes the global logger. ENABLE_DEBUG_LOGS forces the debug level.
func InitializeLogger(cfg config.LogConfig) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	if cfg.Debug {
		level = "debug"
	}
	logger.Init(level, cfg.Pretty)
}
