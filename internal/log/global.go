package log

import (
	"sync"
)

var (
	defaultLogger *Logger
	loggerMu      sync.RWMutex
)

// SetDefaultLogger sets the process-wide default logger.
func SetDefaultLogger(logger *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
}

// DefaultLogger returns the process-wide default logger,
// creating one from DefaultConfig on first use.
func DefaultLogger() *Logger {
	loggerMu.RLock()
	if defaultLogger != nil {
		defer loggerMu.RUnlock()
		return defaultLogger
	}
	loggerMu.RUnlock()

	logger := Default()
	SetDefaultLogger(logger)
	return logger
}

// Configure builds a logger from the level and format names used by flags
// and the config file, installs it as the default and returns it.
func Configure(level, format string) (*Logger, error) {
	cfg := DefaultConfig()

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl

	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	cfg.Format = f

	logger := New(cfg)
	SetDefaultLogger(logger)
	return logger, nil
}
