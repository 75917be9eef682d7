package logger

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var levelColors = map[zapcore.Level]*color.Color{
	zapcore.DebugLevel:  color.New(color.FgCyan),
	zapcore.InfoLevel:   color.New(color.FgGreen),
	zapcore.WarnLevel:   color.New(color.FgYellow),
	zapcore.ErrorLevel:  color.New(color.FgRed),
	zapcore.DPanicLevel: color.New(color.FgMagenta),
	zapcore.PanicLevel:  color.New(color.FgMagenta),
	zapcore.FatalLevel:  color.New(color.FgMagenta),
}

type logger struct {
	zap *zap.Logger
}

// NewLogger builds a logger writing to stderr.
func NewLogger(config LoggingConfig) Logger {
	return NewWriterLogger(config, os.Stderr)
}

// NewWriterLogger builds a logger writing to w.
func NewWriterLogger(config LoggingConfig, w io.Writer) Logger {
	core := zapcore.NewCore(newEncoder(config.json()), zapcore.AddSync(w), ParseLevel(config.Level))

	return &logger{zap: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))}
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(z *zap.Logger) Logger {
	if z == nil {
		return NewNoopLogger()
	}

	return &logger{zap: z}
}

// NewDevelopmentLogger logs everything to stderr with colored levels.
func NewDevelopmentLogger() Logger {
	return NewLogger(LoggingConfig{Level: "debug", Format: "console"})
}

// NewProductionLogger logs info and above to stderr as json.
func NewProductionLogger() Logger {
	return NewLogger(LoggingConfig{Level: "info", Format: "json"})
}

// NewNoopLogger returns a logger that drops every record.
func NewNoopLogger() Logger {
	return &logger{zap: zap.NewNop()}
}

// ParseLevel maps a textual level to a zap level. Unknown values map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
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

func newEncoder(json bool) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if json {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncodeDuration = zapcore.SecondsDurationEncoder

		return zapcore.NewJSONEncoder(cfg)
	}

	cfg.EncodeLevel = colorLevelEncoder

	return zapcore.NewConsoleEncoder(cfg)
}

// colorLevelEncoder colors levels unless color output is disabled.
func colorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	c, ok := levelColors[level]
	if !ok {
		enc.AppendString(level.CapitalString())
		return
	}

	enc.AppendString(c.Sprint(level.CapitalString()))
}

func (l *logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...Field) { l.zap.Error(msg, fields...) }

func (l *logger) With(fields ...Field) Logger {
	return &logger{zap: l.zap.With(fields...)}
}

func (l *logger) Named(name string) Logger {
	return &logger{zap: l.zap.Named(name)}
}

func (l *logger) Sync() error {
	return l.zap.Sync()
}
