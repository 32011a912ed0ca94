package testutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewSimpleLogger returns a development console logger named "test".
// Debug messages are shown only when debug is true
func NewSimpleLogger(debug bool, name ...string) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	if debug {
		lvl = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("04:05.000")
	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	loggerName := "test"
	if len(name) > 0 {
		loggerName = name[0]
	}
	return log.Named(loggerName).Sugar()
}
