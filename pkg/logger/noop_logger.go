package logger

import (
	"context"

	"github.com/turtacn/ccs/pkg/constants"
)

// noopLogger discards all log output. Useful in tests.
type noopLogger struct{}

// NewNoopLogger returns a Logger that does nothing.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (n *noopLogger) Debug(ctx context.Context, message string, fields ...Field)            {}
func (n *noopLogger) Info(ctx context.Context, message string, fields ...Field)             {}
func (n *noopLogger) Warn(ctx context.Context, message string, fields ...Field)             {}
func (n *noopLogger) Error(ctx context.Context, message string, err error, fields ...Field) {}
func (n *noopLogger) Fatal(ctx context.Context, message string, err error, fields ...Field) {}
func (n *noopLogger) WithFields(fields ...Field) Logger                                     { return n }
func (n *noopLogger) WithComponent(component string) Logger                                 { return n }
func (n *noopLogger) SetLevel(level constants.LogLevel)                                     {}
func (n *noopLogger) GetLevel() constants.LogLevel                                          { return constants.LogLevelFatal }
