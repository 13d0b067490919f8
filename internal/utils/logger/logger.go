// internal/utils/logger/logger.go
package logger

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger расширяет zap.Logger операциями и замером времени.
type Logger struct {
	*zap.Logger
	config *Config
}

// New создает логгер: JSON в файл с ротацией и, опционально, консоль.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	level, err := cfg.level()
	if err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	fileEncoder := zap.NewProductionEncoderConfig()
	fileEncoder.TimeKey = "timestamp"
	fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder
	fileEncoder.EncodeLevel = zapcore.CapitalLevelEncoder
	fileEncoder.EncodeDuration = zapcore.StringDurationEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), zapcore.AddSync(rotator), level),
	}
	if cfg.Console {
		console := zapcore.NewCore(ConsoleEncoder(), zapcore.Lock(os.Stderr), level)
		cores = append(cores, newShortFieldsCore(console))
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.AddCaller())
	}
	return &Logger{Logger: zap.New(zapcore.NewTee(cores...), opts...), config: cfg}, nil
}

func (c *Config) level() (zapcore.Level, error) {
	if c.Development {
		return zapcore.DebugLevel, nil
	}
	if c.Level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return lvl, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	return lvl, nil
}

// WithOperation создает логгер для конкретной операции
func (l *Logger) WithOperation(operation string) *zap.Logger {
	return WithOperation(l.Logger, operation)
}

// WithOperation помечает логгер операцией и correlation_id.
func WithOperation(base *zap.Logger, operation string) *zap.Logger {
	return base.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.New().String()),
	)
}

// WithMint добавляет адрес токена и его bonding curve.
func WithMint(base *zap.Logger, mint, curve solana.PublicKey) *zap.Logger {
	return base.With(
		zap.String("mint", mint.String()),
		zap.String("bonding_curve", curve.String()),
	)
}

// Sync сбрасывает буферы, игнорируя терминалы без fsync.
func (l *Logger) Sync() error {
	return Sync(l.Logger)
}

// Sync flushes l. EINVAL and ENOTTY from a terminal stderr are not errors.
func Sync(l *zap.Logger) error {
	err := l.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}

// TrackPerformance отслеживает производительность операции
func (l *Logger) TrackPerformance(operation string) (end func()) {
	start := time.Now()
	opLogger := l.WithOperation(operation)
	opLogger.Debug("Starting operation")

	return func() {
		duration := time.Since(start)
		opLogger.Debug("Operation completed",
			zap.Duration("duration", duration),
			zap.Float64("duration_ms", float64(duration.Microseconds())/1000),
		)
	}
}
