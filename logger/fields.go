package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field constructors.
var (
	// String creates a string field.
	String = zap.String
	// Strings creates a string slice field.
	Strings = zap.Strings
	// Int creates an int field.
	Int = zap.Int
	// Bool creates a bool field.
	Bool = zap.Bool
	// Duration creates a duration field.
	Duration = zap.Duration
	// Error creates an error field.
	Error = zap.Error
	// Any creates a field from any value.
	Any = zap.Any
)

// Unit groups the fields identifying a broker unit.
func Unit(kind, name string) []Field {
	return []Field{String("kind", kind), String("unit", name)}
}

// Elapsed returns a duration field measured from start.
func Elapsed(start time.Time) Field {
	return Duration("elapsed", time.Since(start))
}
