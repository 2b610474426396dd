// Package zaplog implements observability.Logger on top of go.uber.org/zap.
package zaplog

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the zap logger.
type Config struct {
	ServiceName string
	Level       observability.LogLevel
	Format      observability.LogFormat
	// OutputPaths defaults to stderr.
	OutputPaths []string
}

// DefaultConfig returns a JSON info-level configuration writing to stderr.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName: serviceName,
		Level:       observability.LogLevelInfo,
		Format:      observability.LogFormatJSON,
		OutputPaths: []string{"stderr"},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	switch c.Format {
	case observability.LogFormatJSON, observability.LogFormatText, "":
	default:
		return errors.New("unsupported log format: " + string(c.Format))
	}
	return nil
}

// Logger wraps a *zap.Logger behind observability.Logger.
type Logger struct {
	zap           *zap.Logger
	contextFields observability.ContextFields
}

// Option configures a Logger.
type Option func(*Logger)

// WithContextFields installs an extractor whose fields are appended to every
// entry logged with a context, typically trace and span ids.
func WithContextFields(fn observability.ContextFields) Option {
	return func(l *Logger) {
		l.contextFields = fn
	}
}

// New builds a zap logger from cfg.
func New(cfg Config, opts ...Option) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	encoding := "json"
	if cfg.Format == observability.LogFormatText {
		encoding = "console"
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel(cfg.Level)),
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]any{
			"pid":     os.Getpid(),
			"service": cfg.ServiceName,
		},
	}

	z, err := zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return Wrap(z, opts...), nil
}

// Wrap adapts an existing *zap.Logger.
func Wrap(z *zap.Logger, opts ...Option) *Logger {
	l := &Logger{zap: z}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Zap exposes the underlying logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

// With returns a child logger that carries fields on every entry.
func (l *Logger) With(fields ...observability.Field) observability.Logger {
	return &Logger{
		zap:           l.zap.With(toZapFields(fields)...),
		contextFields: l.contextFields,
	}
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields []observability.Field) {
	ce := l.zap.Check(level, msg)
	if ce == nil {
		return
	}

	zfields := toZapFields(fields)
	if ctx != nil && l.contextFields != nil {
		zfields = append(zfields, toZapFields(l.contextFields(ctx))...)
	}
	ce.Write(zfields...)
}

func zapLevel(level observability.LogLevel) zapcore.Level {
	switch level {
	case observability.LogLevelDebug:
		return zapcore.DebugLevel
	case observability.LogLevelWarn:
		return zapcore.WarnLevel
	case observability.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapFields(fields []observability.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, toZapField(f))
	}
	return out
}

func toZapField(f observability.Field) zap.Field {
	switch v := f.Value.(type) {
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case float64:
		return zap.Float64(f.Key, v)
	case bool:
		return zap.Bool(f.Key, v)
	case time.Duration:
		return zap.Duration(f.Key, v)
	case error:
		return zap.NamedError(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}
