package configslog

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the structured logger; SLog is its sugared twin for printf-style lines.
// Both start as no-op loggers so packages can log before InitLogger runs (tests).
var (
	Log  = zap.NewNop()
	SLog = Log.Sugar()
)

// InitLogger builds the process logger from APP_ENV and LOG_LEVEL.
// Production gets JSON output, everything else a colored console encoder.
func InitLogger() {
	level := zapcore.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
			level = zapcore.InfoLevel
		}
	}

	var cfg zap.Config
	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		logger = zap.NewExample()
		logger.Error("Logger could not be built, falling back to example logger", zap.Error(err))
	}

	Log = logger
	SLog = logger.Sugar()
	zap.ReplaceGlobals(logger)
}

// SyncLogger flushes buffered entries. Meant to be deferred in main.
func SyncLogger() {
	if Log != nil {
		_ = Log.Sync()
	}
}
