package logger

import (
	"go.uber.org/zap"
)

// Logger is the structured logger the broker writes lifecycle records to.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that adds fields to every record.
	With(fields ...Field) Logger
	// Named appends a segment to the logger name.
	Named(name string) Logger

	Sync() error
}

// Field is a structured log field.
type Field = zap.Field

// LoggingConfig selects the level and encoding of a logger built with
// NewLogger. Format is "json" or "console"; an empty Format follows
// Environment, where "production" means json.
type LoggingConfig struct {
	Level       string `yaml:"level"       json:"level"`
	Format      string `yaml:"format"      json:"format"`
	Environment string `yaml:"environment" json:"environment"`
}

func (c LoggingConfig) json() bool {
	if c.Format != "" {
		return c.Format == "json"
	}

	return c.Environment == "production"
}
