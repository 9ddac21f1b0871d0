package testutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewSimpleLogger is a development logger with short timestamps. Debug level is enabled with debug
func NewSimpleLogger(debug bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("04:05.000")
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		cfg.Level.SetLevel(zapcore.DebugLevel)
	}
	log, err := cfg.Build(zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		panic(err)
	}
	return log.Sugar()
}

// NewNamedLogger is NewSimpleLogger with the name, for tests running several components
func NewNamedLogger(name string, debug bool) *zap.SugaredLogger {
	return NewSimpleLogger(debug).Named(name)
}
