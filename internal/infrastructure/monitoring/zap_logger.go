package monitoring

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/turtacn/ccs/internal/config"
	"github.com/turtacn/ccs/pkg/constants"
	"github.com/turtacn/ccs/pkg/logger"
)

// zapLogger adapts a zap core to the logger.Logger interface used across
// the codebase. Trace and span identifiers are pulled from the context so
// log lines correlate with traces.
type zapLogger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger builds the production logger from config.
func NewZapLogger(cfg *config.LogConfig) logger.Logger {
	level := zap.NewAtomicLevelAt(toZapLevel(constants.ParseLogLevel(cfg.Level)))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sink := zapcore.Lock(os.Stdout)
	if cfg.OutputPath != "" && cfg.OutputPath != "stdout" {
		if f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			sink = zapcore.Lock(f)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)
	return &zapLogger{
		zl:    zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		level: level,
	}
}

func toZapLevel(l constants.LogLevel) zapcore.Level {
	switch l {
	case constants.LogLevelDebug:
		return zapcore.DebugLevel
	case constants.LogLevelWarn:
		return zapcore.WarnLevel
	case constants.LogLevelError:
		return zapcore.ErrorLevel
	case constants.LogLevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (z *zapLogger) fields(ctx context.Context, fields []logger.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		out = append(out,
			zap.String("trace_id", span.TraceID().String()),
			zap.String("span_id", span.SpanID().String()),
		)
	}
	if v := ctx.Value(constants.ContextKeyRequestID); v != nil {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, zap.String("request_id", s))
		}
	}
	return out
}

func (z *zapLogger) Debug(ctx context.Context, message string, fields ...logger.Field) {
	z.zl.Debug(message, z.fields(ctx, fields)...)
}

func (z *zapLogger) Info(ctx context.Context, message string, fields ...logger.Field) {
	z.zl.Info(message, z.fields(ctx, fields)...)
}

func (z *zapLogger) Warn(ctx context.Context, message string, fields ...logger.Field) {
	z.zl.Warn(message, z.fields(ctx, fields)...)
}

func (z *zapLogger) Error(ctx context.Context, message string, err error, fields ...logger.Field) {
	all := z.fields(ctx, fields)
	if err != nil {
		all = append(all, zap.Error(err))
	}
	z.zl.Error(message, all...)
}

func (z *zapLogger) Fatal(ctx context.Context, message string, err error, fields ...logger.Field) {
	all := z.fields(ctx, fields)
	if err != nil {
		all = append(all, zap.Error(err))
	}
	z.zl.Fatal(message, all...)
}

func (z *zapLogger) WithFields(fields ...logger.Field) logger.Logger {
	zfields := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zfields = append(zfields, zap.Any(f.Key, f.Value))
	}
	return &zapLogger{zl: z.zl.With(zfields...), level: z.level}
}

func (z *zapLogger) WithComponent(component string) logger.Logger {
	return &zapLogger{zl: z.zl.With(zap.String("component", component)), level: z.level}
}

func (z *zapLogger) SetLevel(level constants.LogLevel) {
	z.level.SetLevel(toZapLevel(level))
}

func (z *zapLogger) GetLevel() constants.LogLevel {
	switch z.level.Level() {
	case zapcore.DebugLevel:
		return constants.LogLevelDebug
	case zapcore.WarnLevel:
		return constants.LogLevelWarn
	case zapcore.ErrorLevel:
		return constants.LogLevelError
	case zapcore.FatalLevel:
		return constants.LogLevelFatal
	default:
		return constants.LogLevelInfo
	}
}
