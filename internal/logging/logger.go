package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/valentindosimont/keyquery/internal/config"
)

// ParseLevel maps a config level name to a zap level, defaulting to info.
func ParseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// New builds a JSON file logger. The terminal belongs to the UI, so nothing is
// written to stdout or stderr. An empty path or level "off" yields a no-op logger.
func New(conf config.LogConfig) (*zap.Logger, func() error, error) {
	noop := func() error { return nil }
	if conf.Path == "" || conf.Level == "off" {
		return zap.NewNop(), noop, nil
	}

	if err := os.MkdirAll(filepath.Dir(conf.Path), 0o755); err != nil {
		return nil, noop, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(conf.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, noop, fmt.Errorf("open log file: %w", err)
	}

	logger := newLogger(zapcore.AddSync(f), ParseLevel(conf.Level))
	logger.Debug("logger ready", zap.String("level", conf.Level), zap.String("path", conf.Path))

	closeFn := func() error {
		_ = logger.Sync()
		return f.Close()
	}
	return logger, closeFn, nil
}

func newLogger(w zapcore.WriteSyncer, lvl zapcore.Level) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.MessageKey = "message"
	encCfg.LevelKey = "level"
	encCfg.TimeKey = "ts"
	encCfg.CallerKey = "caller"
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}
