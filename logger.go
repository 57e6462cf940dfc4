package ionmetric

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JupiterMetaLabs/ionmetric/internal/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging sink used by the interceptor and by Setup.
// All methods are safe for concurrent use.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, err error, fields ...Field)

	// With returns a child logger with fields attached to every entry.
	With(fields ...Field) Logger

	// Named returns a named sub-logger.
	Named(name string) Logger

	// Sync flushes buffered entries.
	Sync() error

	// Shutdown flushes entries and stops OTEL log export, if any.
	Shutdown(ctx context.Context) error

	// SetLevel changes the level at runtime: debug, info, warn, error.
	SetLevel(level string)
	GetLevel() string
}

// NewLogger builds a zap-backed Logger from cfg. If OTEL log export cannot be
// initialised the error is returned; see Setup for the degrading variant.
func NewLogger(cfg Config) (Logger, error) {
	res, err := core.NewZapLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &zapLogger{zap: res.Logger, atomicLvl: res.AtomicLevel, otelProvider: res.OTELProvider}, nil
}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return newLoggerFromZap(zap.NewNop())
}

func newLoggerFromZap(z *zap.Logger) *zapLogger {
	return &zapLogger{zap: z, atomicLvl: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

type zapLogger struct {
	zap          *zap.Logger
	atomicLvl    zap.AtomicLevel
	otelProvider *core.LogProvider
}

// prepareFields converts fields and appends trace correlation from ctx.
func (l *zapLogger) prepareFields(ctx context.Context, fields []Field) []zap.Field {
	zapFields := toZapFields(fields)

	// Background and TODO never carry span context.
	if ctx != nil && ctx != context.Background() && ctx != context.TODO() {
		zapFields = append(zapFields, extractContextZapFields(ctx)...)
		// The otelzap bridge reads the span context from this field.
		zapFields = append(zapFields, zap.Reflect(core.SentinelKey, ctx))
	}
	return zapFields
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	if !l.atomicLvl.Enabled(zapcore.DebugLevel) {
		return
	}
	l.zap.Debug(msg, l.prepareFields(ctx, fields)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	if !l.atomicLvl.Enabled(zapcore.InfoLevel) {
		return
	}
	l.zap.Info(msg, l.prepareFields(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	if !l.atomicLvl.Enabled(zapcore.WarnLevel) {
		return
	}
	l.zap.Warn(msg, l.prepareFields(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, err error, fields ...Field) {
	if !l.atomicLvl.Enabled(zapcore.ErrorLevel) {
		return
	}
	zapFields := l.prepareFields(ctx, fields)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	l.zap.Error(msg, zapFields...)
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{
		zap:          l.zap.With(toZapFields(fields)...),
		atomicLvl:    l.atomicLvl,
		otelProvider: l.otelProvider,
	}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{
		zap:          l.zap.Named(name),
		atomicLvl:    l.atomicLvl,
		otelProvider: l.otelProvider,
	}
}

func (l *zapLogger) Sync() error {
	return l.zap.Sync()
}

func (l *zapLogger) Shutdown(ctx context.Context) error {
	var errs []error

	// Stop OTEL first so nothing new is queued for the backend.
	if l.otelProvider != nil {
		if err := l.otelProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel: %w", err))
		}
	}
	if err := l.zap.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("zap sync: %w", err))
	}
	return errors.Join(errs...)
}

func (l *zapLogger) SetLevel(level string) {
	l.atomicLvl.SetLevel(core.ParseLevel(level))
}

func (l *zapLogger) GetLevel() string {
	return l.atomicLvl.Level().String()
}

func convertField(f Field) zap.Field {
	switch f.Type {
	case StringType:
		return zap.String(f.Key, f.StringVal)
	case Int64Type:
		return zap.Int64(f.Key, f.Integer)
	case Float64Type:
		return zap.Float64(f.Key, f.Float)
	case BoolType:
		return zap.Bool(f.Key, f.Integer == 1)
	case DurationType:
		return zap.Duration(f.Key, time.Duration(f.Integer))
	case ErrorType:
		if err, ok := f.Interface.(error); ok {
			return zap.NamedError(f.Key, err)
		}
		return zap.Any(f.Key, f.Interface)
	default:
		return zap.Any(f.Key, f.Interface)
	}
}

func toZapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	zapFields := make([]zap.Field, 0, len(fields)+4)
	for _, f := range fields {
		zapFields = append(zapFields, convertField(f))
	}
	return zapFields
}
