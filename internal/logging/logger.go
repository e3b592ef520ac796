package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const FileName = "domainwatch.log"

// NewLogger writes JSON lines to a rotated file under logDir. level is a zap
// level name ("debug", "info", ...); empty means info. With stderr set the
// same entries are also written to stderr.
func NewLogger(logDir, level string, stderr bool) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		l, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = l
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, FileName),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(cfg)

	core := zapcore.NewCore(enc, w, lvl)
	if stderr {
		core = zapcore.NewTee(core, zapcore.NewCore(enc.Clone(), zapcore.Lock(os.Stderr), lvl))
	}
	return zap.New(core, zap.AddCaller()), nil
}
