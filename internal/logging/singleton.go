package logging

import (
	"io"
	"sync"
)

var (
	instance *Logger
	fallback *Logger
	once     sync.Once
	mu       sync.RWMutex
)

// InitLogger builds the process logger from config, with console output
// going to console, and installs it. A previously installed logger is
// closed.
func InitLogger(config *Config, console io.Writer) (*Logger, error) {
	logger, err := NewConsoleLogger(config, console)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	previous := instance
	instance = logger
	mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return logger, nil
}

// GetGlobalLogger returns the process logger. Before InitLogger has been
// called it returns a stderr logger at info level.
func GetGlobalLogger() *Logger {
	mu.RLock()
	l := instance
	mu.RUnlock()
	if l != nil {
		return l
	}

	once.Do(func() {
		fallback, _ = NewLogger(DefaultConfig())
	})
	return fallback
}
