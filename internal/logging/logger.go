package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/moffa90/go-hidboot/bootloader"
	"github.com/moffa90/go-hidboot/internal/config"
)

// New builds a zap logger writing to stderr and, if a file name is
// configured, to a rotating lumberjack file as well.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LoggingConfig, console io.Writer) (*zap.Logger, error) {
	level := parseLevel(cfg.Level)

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format(time.RFC3339Nano)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(console)}
	if cfg.File.Filename != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// programmerLogger adapts zap to bootloader.Logger.
type programmerLogger struct {
	s *zap.SugaredLogger
}

// Programmer returns a bootloader.Logger backed by l.
func Programmer(l *zap.Logger) bootloader.Logger {
	return programmerLogger{s: l.WithOptions(zap.AddCallerSkip(2)).Sugar()}
}

func (p programmerLogger) Debug(msg string, keysAndValues ...interface{}) {
	p.s.Debugw(msg, keysAndValues...)
}

func (p programmerLogger) Info(msg string, keysAndValues ...interface{}) {
	p.s.Infow(msg, keysAndValues...)
}

func (p programmerLogger) Error(msg string, keysAndValues ...interface{}) {
	p.s.Errorw(msg, keysAndValues...)
}
