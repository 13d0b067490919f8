// internal/utils/logger/console.go
package logger

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Colors for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// shortenedKeys are fields holding base58 keys and signatures.
var shortenedKeys = map[string]bool{
	"signature":     true,
	"mint":          true,
	"bonding_curve": true,
	"address":       true,
	"recipient":     true,
	"authority":     true,
	"program_id":    true,
}

// ConsoleEncoder пишет короткие цветные строки для терминала.
func ConsoleEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	})
}

func levelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(colorCyan + "[DEBUG]" + colorReset)
	case zapcore.InfoLevel:
		enc.AppendString(colorGreen + "[INFO]" + colorReset)
	case zapcore.WarnLevel:
		enc.AppendString(colorYellow + "[WARN]" + colorReset)
	case zapcore.ErrorLevel:
		enc.AppendString(colorRed + "[ERROR]" + colorReset)
	default:
		enc.AppendString(colorRed + colorBold + "[" + level.CapitalString() + "]" + colorReset)
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05"))
}

func shorten(s string) string {
	if len(s) > 16 {
		return s[:6] + "..." + s[len(s)-6:]
	}
	return s
}

// shortFieldsCore shortens key and signature fields before they reach the
// console. The file core keeps them whole.
type shortFieldsCore struct {
	zapcore.Core
}

func newShortFieldsCore(core zapcore.Core) zapcore.Core {
	return &shortFieldsCore{Core: core}
}

func shortenFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if f.Type == zapcore.StringType && shortenedKeys[f.Key] {
			f.String = shorten(f.String)
		}
		out[i] = f
	}
	return out
}

func (c *shortFieldsCore) With(fields []zapcore.Field) zapcore.Core {
	return &shortFieldsCore{Core: c.Core.With(shortenFields(fields))}
}

func (c *shortFieldsCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *shortFieldsCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, shortenFields(fields))
}
