// Package alert implements the AlertSink collaborator: a Sink interface
// with a Sentry-backed, throttled implementation plus no-op and recording
// sinks. No code outside this package constructs or calls a Sink:
// cmd/engine wires none, so fatal conditions (BrokerUnavailable,
// ModelUnavailable, safe-mode entry, StorageError) are only logged. The
// shape is grounded on
// the teacher's internal/services/alert_service.go (throttled dispatch,
// level/source/message/details shape) but backed by sentry-go instead of
// Redis-persisted alert records, since the engine has no HTTP surface to
// serve an active-alerts list from.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/nyxtrader/decisioncore/internal/logging"
)

// Level is the closed enumeration of alert severities.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Event is one raised alert.
type Event struct {
	ID        string
	Level     Level
	Source    string // component name, e.g. "risk_gate", "broker"
	Message   string
	Details   map[string]any
	Timestamp time.Time
}

// Sink is the alerting collaborator interface; NoopSink and RecordingSink
// can stand in for *SentrySink in tests.
type Sink interface {
	CaptureError(ctx context.Context, level Level, source, message string, details map[string]any) error
}

// throttler suppresses repeat alerts for the same (source, level, message)
// tuple within a cooldown window, identical in shape to the teacher's
// AlertThrottler.
type throttler struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	cooldown time.Duration
}

func newThrottler(cooldown time.Duration) *throttler {
	return &throttler{lastSent: make(map[string]time.Time), cooldown: cooldown}
}

func (t *throttler) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, seen := t.lastSent[key]
	if !seen || time.Since(last) > t.cooldown {
		t.lastSent[key] = time.Now()
		return true
	}
	return false
}

// SentrySink is the production AlertSink, reporting to Sentry via
// sentry-go and logging every capture through StandardLogger.
type SentrySink struct {
	logger    *logging.StandardLogger
	throttler *throttler
}

// NewSentrySink initializes the sentry-go SDK with dsn and returns a Sink.
// A blank dsn puts the SDK in no-op mode (events are dropped locally).
func NewSentrySink(dsn string, tracesSampleRate float64, logger *logging.StandardLogger) (*SentrySink, error) {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		TracesSampleRate: tracesSampleRate,
	}); err != nil {
		return nil, fmt.Errorf("alert: sentry init: %w", err)
	}
	return &SentrySink{
		logger:    logger.WithComponent("alert_sink"),
		throttler: newThrottler(5 * time.Minute),
	}, nil
}

// CaptureError logs and reports an alert, throttled per (source, level,
// message) so a tight retry loop does not flood Sentry.
func (s *SentrySink) CaptureError(ctx context.Context, level Level, source, message string, details map[string]any) error {
	event := Event{
		ID:        uuid.NewString(),
		Level:     level,
		Source:    source,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}

	key := fmt.Sprintf("%s:%s:%s", source, level, message)
	if !s.throttler.allow(key) {
		s.logger.WithFields(map[string]interface{}{"alert_id": event.ID, "alert_key": key}).Debug("alert throttled")
		return nil
	}

	log := s.logger.WithFields(map[string]interface{}{
		"alert_id": event.ID,
		"level":    string(level),
		"source":   source,
	})
	switch level {
	case LevelCritical, LevelError:
		log.Error(message)
	case LevelWarning:
		log.Warn(message)
	default:
		log.Info(message)
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(toSentryLevel(level))
		scope.SetTag("source", source)
		for k, v := range details {
			scope.SetExtra(k, v)
		}
		sentry.CaptureMessage(message)
	})

	return nil
}

// Flush blocks until pending events are sent or timeout elapses.
func (s *SentrySink) Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

func toSentryLevel(level Level) sentry.Level {
	switch level {
	case LevelCritical:
		return sentry.LevelFatal
	case LevelError:
		return sentry.LevelError
	case LevelWarning:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}

// NoopSink discards every alert.
type NoopSink struct{}

func (NoopSink) CaptureError(context.Context, Level, string, string, map[string]any) error {
	return nil
}

// RecordingSink captures every alert in-memory for test assertions.
type RecordingSink struct {
	mu     sync.Mutex
	Events []Event
}

func (r *RecordingSink) CaptureError(_ context.Context, level Level, source, message string, details map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{
		ID: uuid.NewString(), Level: level, Source: source, Message: message,
		Details: details, Timestamp: time.Now(),
	})
	return nil
}

func (r *RecordingSink) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Events)
}
