// Package logger is the shared logging setup for the indexer binaries: a zap
// logger with an optional Sentry tee. Entries at error level and above become
// Sentry events; lower levels are recorded as breadcrumbs on the scope.
package logger

import (
	"context"
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base         *zap.Logger
	sentryClient *sentry.Client
)

// Config controls logger construction. Only Debug is required; Sentry is
// enabled when SentryDSN or SentryClient is set.
type Config struct {
	// Debug selects the development encoder and debug level
	Debug bool
	// Service names the emitting binary; it is attached to every log entry
	// and tagged on every Sentry event
	Service string
	// SentryDSN enables the Sentry tee
	SentryDSN string
	// SentryClient overrides the client built from SentryDSN
	SentryClient *sentry.Client
	// BreadcrumbLevel is the minimum level kept as a breadcrumb (default info)
	BreadcrumbLevel zapcore.Level
	// Tags are extra tags stamped on Sentry events
	Tags map[string]string
}

// Initialize builds the process-wide logger. Call once from main before any
// other package logs.
func Initialize(cfg Config) error {
	zapLogger, err := buildZap(cfg)
	if err != nil {
		return err
	}

	if cfg.SentryDSN == "" && cfg.SentryClient == nil {
		base = zapLogger
		return nil
	}

	base, err = teeToSentry(zapLogger, cfg)
	return err
}

func buildZap(cfg Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Debug {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	if cfg.Service != "" {
		zapLogger = zapLogger.With(zap.String("service", cfg.Service))
	}
	return zapLogger, nil
}

func teeToSentry(zapLogger *zap.Logger, cfg Config) (*zap.Logger, error) {
	client := cfg.SentryClient
	if client == nil {
		var err error
		client, err = sentry.NewClient(sentry.ClientOptions{
			Dsn:   cfg.SentryDSN,
			Debug: cfg.Debug,
		})
		if err != nil {
			return nil, err
		}
	}
	sentryClient = client

	breadcrumbLevel := cfg.BreadcrumbLevel
	if breadcrumbLevel == zapcore.InvalidLevel {
		breadcrumbLevel = zapcore.InfoLevel
	}

	tags := make(map[string]string, len(cfg.Tags)+1)
	for k, v := range cfg.Tags {
		tags[k] = v
	}
	if cfg.Service != "" {
		tags["service"] = cfg.Service
	}

	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level:             zapcore.ErrorLevel,
		EnableBreadcrumbs: true,
		BreadcrumbLevel:   breadcrumbLevel,
		Tags:              tags,
	}, zapsentry.NewSentryClientFromClient(client))
	if err != nil {
		return nil, err
	}

	return zapsentry.AttachCoreToLogger(core, zapLogger), nil
}

// Flush drains buffered Sentry events; deferred in every main
func Flush(timeout time.Duration) {
	if sentryClient != nil {
		sentryClient.Flush(timeout)
	}
}

// FromContext returns the logger bound to the context's Sentry scope, so
// breadcrumbs group per request or per message rather than per process.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return base
	}
	return base.With(zapsentry.Context(ctx))
}

// Default returns the process-wide logger without context scoping
func Default() *zap.Logger {
	return base
}

// Info logs at info level
func Info(msg string, fields ...zap.Field) {
	base.Info(msg, fields...)
}

// InfoCtx logs at info level with the context's Sentry scope
func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	FromContext(ctx).Info(msg, fields...)
}

// Error logs an error; a nil err still records the fields
func Error(err error, fields ...zap.Field) {
	if err != nil {
		base.Error(err.Error(), fields...)
		return
	}
	base.Error("error occurred", fields...)
}

// ErrorCtx logs an error with the context's Sentry scope
func ErrorCtx(ctx context.Context, err error, fields ...zap.Field) {
	if err != nil {
		FromContext(ctx).Error(err.Error(), fields...)
		return
	}
	FromContext(ctx).Error("error occurred", fields...)
}

// Fatal logs at fatal level and exits
func Fatal(msg string, fields ...zap.Field) {
	base.Fatal(msg, fields...)
}

// FatalCtx logs at fatal level with the context's Sentry scope and exits
func FatalCtx(ctx context.Context, msg string, fields ...zap.Field) {
	FromContext(ctx).Fatal(msg, fields...)
}

// Warn logs at warning level
func Warn(msg string, fields ...zap.Field) {
	base.Warn(msg, fields...)
}

// WarnCtx logs at warning level with the context's Sentry scope
func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	FromContext(ctx).Warn(msg, fields...)
}

// Debug logs at debug level
func Debug(msg string, fields ...zap.Field) {
	base.Debug(msg, fields...)
}

// DebugCtx logs at debug level with the context's Sentry scope
func DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	FromContext(ctx).Debug(msg, fields...)
}
