package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "streamlify"

// Log and Sugar are no-op until Init or Set is called, so packages can log
// from tests without any setup.
var (
	Log   = zap.NewNop()
	Sugar = Log.Sugar()
)

// New returns a JSON logger writing entries at or above level to w.
func New(w io.Writer, level zapcore.LevelEnabler, fields ...zap.Field) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(w), level)
	return zap.New(core, zap.AddCaller(), zap.Fields(fields...))
}

// Init points the global loggers at stdout.
func Init(level zapcore.Level) {
	Set(New(os.Stdout, level, zap.String("service", serviceName)))
}

// Set replaces the global loggers and returns a func that restores the
// previous pair.
func Set(l *zap.Logger) (restore func()) {
	prevLog, prevSugar := Log, Sugar
	Log, Sugar = l, l.Sugar()
	return func() { Log, Sugar = prevLog, prevSugar }
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = Log.Sync()
}
