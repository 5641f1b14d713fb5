// Package logging provides the Decision Core's structured logger: a thin
// wrapper over go.uber.org/zap exposing the chained With*/Info/Warn/Error
// call-site style used throughout the engine, grounded on the teacher's
// zaplogrus shim (internal/logging/zaplogrus) but built directly on *zap.Logger
// since every call site here wants structured fields, not a logrus Fields map.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StandardLogger is the engine-wide logger. Every component (MarketClock,
// IndicatorEngine, RiskGate, TradingAgent, Scheduler, ...) is constructed
// with one, scoped via WithComponent.
type StandardLogger struct {
	logger *zap.Logger
}

// NewStandardLogger builds a StandardLogger at the given level ("debug",
// "info", "warn", "error") writing JSON to stdout, with caller and
// error-level stacktrace annotation enabled in non-development environments.
func NewStandardLogger(level, environment string) *StandardLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(getZapLevel(level)),
	)

	opts := []zap.Option{zap.AddCaller()}
	if environment != "development" {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return &StandardLogger{logger: zap.New(core, opts...)}
}

// Logger exposes the underlying *zap.Logger for components that need
// direct zap access (e.g. to pass into a third-party client's logger hook).
func (l *StandardLogger) Logger() *zap.Logger { return l.logger }

func (l *StandardLogger) with(fields ...zap.Field) *StandardLogger {
	return &StandardLogger{logger: l.logger.With(fields...)}
}

// WithService scopes the logger to a named engine process (e.g. "engine",
// "backfill").
func (l *StandardLogger) WithService(name string) *StandardLogger {
	return l.with(zap.String("service", name))
}

// WithComponent scopes the logger to one of the engine's collaborating
// components (e.g. "risk_gate", "market_clock", "trading_agent").
func (l *StandardLogger) WithComponent(name string) *StandardLogger {
	return l.with(zap.String("component", name))
}

// WithOperation scopes the logger to the in-flight operation name.
func (l *StandardLogger) WithOperation(name string) *StandardLogger {
	return l.with(zap.String("operation", name))
}

// WithRequestID scopes the logger to a cycle or query correlation ID.
func (l *StandardLogger) WithRequestID(id string) *StandardLogger {
	return l.with(zap.String("request_id", id))
}

// WithUserID scopes the logger to an acting identity, when one exists.
func (l *StandardLogger) WithUserID(id string) *StandardLogger {
	return l.with(zap.String("user_id", id))
}

// WithSymbol scopes the logger to the ticker symbol under analysis.
func (l *StandardLogger) WithSymbol(symbol string) *StandardLogger {
	return l.with(zap.String("symbol", symbol))
}

// WithError attaches an error field.
func (l *StandardLogger) WithError(err error) *StandardLogger {
	return l.with(zap.Error(err))
}

// WithFields attaches an arbitrary set of key/value pairs.
func (l *StandardLogger) WithFields(fields map[string]interface{}) *StandardLogger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return l.with(zf...)
}

// WithMetrics attaches a nested "metrics" object, used for cycle-timing
// and queue-depth log lines.
func (l *StandardLogger) WithMetrics(metrics map[string]interface{}) *StandardLogger {
	return l.with(zap.Any("metrics", metrics))
}

func (l *StandardLogger) Debug(msg string)  { l.logger.Debug(msg) }
func (l *StandardLogger) Info(msg string)   { l.logger.Info(msg) }
func (l *StandardLogger) Warn(msg string)   { l.logger.Warn(msg) }
func (l *StandardLogger) Error(msg string)  { l.logger.Error(msg) }
func (l *StandardLogger) Fatal(msg string)  { l.logger.Fatal(msg) }

// LogStartup emits a standard startup log line.
func (l *StandardLogger) LogStartup(service, version string, port int) {
	l.logger.Info("startup",
		zap.String("service", service),
		zap.String("version", version),
		zap.Int("port", port),
		zap.String("event", "startup"),
	)
}

// LogShutdown emits a standard shutdown log line.
func (l *StandardLogger) LogShutdown(service, reason string) {
	l.logger.Info("shutdown",
		zap.String("service", service),
		zap.String("reason", reason),
		zap.String("event", "shutdown"),
	)
}

// Sync flushes any buffered log entries.
func (l *StandardLogger) Sync() error { return l.logger.Sync() }

func getZapLevel(level string) zapcore.Level {
	switch level {
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
