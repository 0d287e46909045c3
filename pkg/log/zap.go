package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ log.Logger = (*ZapLogger)(nil)

// Log output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the output of New.
type Config struct {
	// Format is FormatConsole or FormatJSON. Unknown formats fall back to console.
	Format string
	Level  zapcore.Level
	// Output defaults to stdout.
	Output io.Writer
}

// ZapLogger adapts zap to the kratos logger. The kratos message key becomes
// the zap message, every other pair a field, and the caller is resolved
// past the kratos helper frames.
type ZapLogger struct {
	log  *zap.Logger
	Sync func() error
}

// New builds a ZapLogger from c.
func New(c Config) *ZapLogger {
	w := c.Output
	if w == nil {
		w = os.Stdout
	}
	return NewZapLogger(
		zapcore.AddSync(w),
		newEncoder(c.Format),
		zap.NewAtomicLevelAt(c.Level),
		zap.AddStacktrace(zap.NewAtomicLevelAt(zapcore.ErrorLevel)),
	)
}

// NewZapLogger returns a zap logger writing encoded entries to w.
func NewZapLogger(w zapcore.WriteSyncer, encoder zapcore.Encoder, level zap.AtomicLevel, opts ...zap.Option) *ZapLogger {
	zapLogger := zap.New(zapcore.NewCore(encoder, w, level), opts...)
	return &ZapLogger{log: zapLogger, Sync: zapLogger.Sync}
}

// Log implements log.Logger.
func (l *ZapLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 || len(keyvals)%2 != 0 {
		l.log.Warn(fmt.Sprint("Keyvalues must appear in pairs: ", keyvals))
		return nil
	}

	var msg string
	fields := make([]zap.Field, 0, len(keyvals)/2+1)
	fields = append(fields, zap.String("caller", getCaller()))
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields = append(fields, field(key, keyvals[i+1]))
	}

	switch level {
	case log.LevelDebug:
		l.log.Debug(msg, fields...)
	case log.LevelInfo:
		l.log.Info(msg, fields...)
	case log.LevelWarn:
		l.log.Warn(msg, fields...)
	case log.LevelError:
		l.log.Error(msg, fields...)
	case log.LevelFatal:
		l.log.Fatal(msg, fields...)
	}
	return nil
}

// field keeps errors and stringers readable and everything else typed.
func field(key string, v interface{}) zap.Field {
	switch v := v.(type) {
	case error:
		return zap.String(key, v.Error())
	case fmt.Stringer:
		return zap.Stringer(key, v)
	default:
		return zap.Any(key, v)
	}
}

// ParseLevel maps a level name to a zapcore.Level.
// Defaults to InfoLevel for production safety.
func ParseLevel(s string) zapcore.Level {
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

func newEncoder(format string) zapcore.Encoder {
	if strings.EqualFold(format, FormatJSON) {
		c := zap.NewProductionEncoderConfig()
		c.EncodeDuration = zapcore.SecondsDurationEncoder
		c.EncodeTime = timeEncoder
		c.CallerKey = "" // resolved by getCaller
		return zapcore.NewJSONEncoder(c)
	}
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "t",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	})
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// skipPatterns contains path patterns to skip when finding the caller.
var skipPatterns = []string{
	"go-kratos/kratos",
	"pkg/log/zap.go",
}

// getCaller returns file:line of the first frame outside the logging stack.
func getCaller() string {
	const maxDepth = 15
	for i := 3; i < maxDepth; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if !skipFrame(file) {
			return formatCaller(file, line)
		}
	}
	return "unknown"
}

func skipFrame(file string) bool {
	for _, pattern := range skipPatterns {
		if strings.Contains(file, pattern) {
			return true
		}
	}
	return false
}

// formatCaller trims file to the path below the module's top-level directories.
func formatCaller(file string, line int) string {
	for _, marker := range []string{"/internal/", "/pkg/", "/cmd/"} {
		if idx := strings.LastIndex(file, marker); idx != -1 {
			return fmt.Sprintf("%s:%d", file[idx+1:], line)
		}
	}
	parts := strings.Split(file, "/")
	if len(parts) >= 2 {
		return fmt.Sprintf("%s/%s:%d", parts[len(parts)-2], parts[len(parts)-1], line)
	}
	return fmt.Sprintf("%s:%d", file, line)
}
