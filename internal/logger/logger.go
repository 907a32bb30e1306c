// internal/logger/logger.go
package logger

import (
	"errors"
	"io"
	"os"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	LogFile    string // empty disables the file sink
	MaxSize    int    // megabytes
	MaxAge     int    // days
	MaxBackups int
	Compress   bool
	Debug      bool
	Pretty     bool // colored console output instead of plain console encoding
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogFile:    "bundler.log",
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
		Pretty:     true,
	}
}

// New builds a logger that tees the console and a rotated JSON file.
func New(cfg *Config) (*zap.Logger, error) {
	return NewWithWriter(cfg, zapcore.Lock(os.Stdout))
}

// NewWithWriter is New with the console sink replaced by console.
func NewWithWriter(cfg *Config, console io.Writer) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	if cfg.Pretty {
		consoleEncoder = PrettyEncoder()
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(console), level),
	}
	if cfg.LogFile != "" {
		logRotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(logRotator), level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// Sync flushes logger, ignoring the errors terminals return for stdout.
func Sync(logger *zap.Logger) error {
	err := logger.Sync()
	if err == nil || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}
