// Package logging owns the process logger.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop().Sugar()
)

// Init builds the process logger. Debug mode uses zap's development config;
// otherwise info level with console encoding. logFile redirects all output.
func Init(debug bool, logFile string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Encoding = "console"
	if logFile != "" {
		cfg.OutputPaths = []string{logFile}
		cfg.ErrorOutputPaths = []string{logFile}
	}

	raw, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	Set(raw.Sugar())
	return L(), nil
}

// Set replaces the process logger.
func Set(l *zap.SugaredLogger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// L returns the process logger. It is a no-op logger until Init is called.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debugf logs only when debug logging is enabled
func Debugf(format string, args ...interface{}) {
	L().Debugf(format, args...)
}

// Infof logs at info level
func Infof(format string, args ...interface{}) {
	L().Infof(format, args...)
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}
