package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// InitProduction installs a JSON logger for batch runs and servers.
func InitProduction() error {
	cfg := zap.NewProductionConfig()
	return build(cfg)
}

// InitDevelopment installs a console logger, friendlier for interactive runs.
func InitDevelopment() error {
	cfg := zap.NewDevelopmentConfig()
	return build(cfg)
}

// Init picks the encoder by mode ("production" or "development") and sets the
// minimum level.
func Init(mode, lvl string) error {
	if lvl != "" {
		if err := SetLevel(lvl); err != nil {
			return err
		}
	}
	switch mode {
	case "", "production":
		return InitProduction()
	case "development":
		return InitDevelopment()
	}
	return fmt.Errorf("unknown log mode %q", mode)
}

// SetLevel changes the level of the installed logger at runtime.
func SetLevel(lvl string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		return fmt.Errorf("log level %q: %w", lvl, err)
	}
	level.SetLevel(l)
	return nil
}

func build(cfg zap.Config) error {
	cfg.Level = level
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	setLogger(l)
	return nil
}

// setLogger swaps the package logger and zap's globals
func setLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
	sugar = l.Sugar()
}

// Log returns the installed *zap.Logger, or zap's global (a no-op until
// initialised).
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	return zap.L()
}

// S returns the sugared logger, never nil.
func S() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	if sugar != nil {
		return sugar
	}
	return zap.S()
}

// Sync flush logs
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
