package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var l *zap.Logger = zap.NewNop()

// Init builds the process-wide logger. Console encoder on stderr; debug
// level when verbose is set.
func Init(verbose bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	l = zap.New(core, zap.AddCaller())
}

func L() *zap.Logger {
	return l
}

func Sync() {
	_ = l.Sync()
}
