package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProductionLogger is a structured logger that emits JSON in production
// (detected via KUBERNETES_SERVICE_HOST, or explicit format override) and
// human-readable text locally. It rate-limits ERROR logs so a failing
// suspension point cannot flood stdout, and supports per-component
// specialization via WithComponent.
type ProductionLogger struct {
	mu          sync.RWMutex
	level       string
	format      string
	component   string
	serviceName string
	output      io.Writer

	errMu       sync.Mutex
	errBucket   int
	errLimit    int
	errWindow   time.Duration
	errLastFill time.Time
}

var _ ComponentAwareLogger = (*ProductionLogger)(nil)

// NewProductionLogger builds a logger for serviceName, auto-detecting
// format (JSON under Kubernetes, text otherwise) and level from
// MODELCORE_LOG_LEVEL / MODELCORE_LOG_FORMAT.
func NewProductionLogger(serviceName string) *ProductionLogger {
	level := strings.ToUpper(os.Getenv("MODELCORE_LOG_LEVEL"))
	if level == "" {
		level = "INFO"
	}
	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		format = "json"
	}
	if v := os.Getenv("MODELCORE_LOG_FORMAT"); v != "" {
		format = v
	}
	return &ProductionLogger{
		level:       level,
		format:      format,
		serviceName: serviceName,
		output:      os.Stdout,
		errLimit:    20,
		errWindow:   time.Second,
	}
}

func (l *ProductionLogger) WithComponent(component string) Logger {
	clone := *l
	clone.component = component
	return &clone
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{})  { l.log("INFO", msg, fields) }
func (l *ProductionLogger) Warn(msg string, fields map[string]interface{})  { l.log("WARN", msg, fields) }
func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) { l.log("DEBUG", msg, fields) }

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	if !l.allowError() {
		return
	}
	l.log("ERROR", msg, fields)
}

func (l *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log("INFO", msg, withRequestID(ctx, fields))
}
func (l *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log("WARN", msg, withRequestID(ctx, fields))
}
func (l *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, withRequestID(ctx, fields))
}
func (l *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if !l.allowError() {
		return
	}
	l.log("ERROR", msg, withRequestID(ctx, fields))
}

func withRequestID(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	if id, ok := RequestIDFromContext(ctx); ok {
		out := make(map[string]interface{}, len(fields)+1)
		for k, v := range fields {
			out[k] = v
		}
		out["request_id"] = id
		return out
	}
	return fields
}

func (l *ProductionLogger) allowError() bool {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	now := time.Now()
	if now.Sub(l.errLastFill) >= l.errWindow {
		l.errBucket = l.errLimit
		l.errLastFill = now
	}
	if l.errBucket <= 0 {
		return false
	}
	l.errBucket--
	return true
}

func (l *ProductionLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.RLock()
	format, component := l.format, l.component
	l.mu.RUnlock()

	if !l.shouldLog(level) {
		return
	}
	timestamp := time.Now().Format(time.RFC3339Nano)
	if format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   l.serviceName,
			"component": component,
			"message":   msg,
		}
		for k, v := range fields {
			if _, reserved := entry[k]; !reserved {
				entry[k] = v
			}
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.output, string(data))
		}
		return
	}

	var b strings.Builder
	for k, v := range fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	fmt.Fprintf(l.output, "%s [%s] [%s] %s%s\n", timestamp, level, component, msg, b.String())
}

func (l *ProductionLogger) shouldLog(level string) bool {
	order := map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}
	cur, ok1 := order[l.level]
	msg, ok2 := order[level]
	if !ok1 || !ok2 {
		return true
	}
	return msg >= cur
}

// SetOutput redirects log output; used by tests to capture log lines.
func (l *ProductionLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// NoOpLogger discards all log output. Used as a safe default when no
// logger is injected.
type NoOpLogger struct{}

var _ ComponentAwareLogger = (*NoOpLogger)(nil)

func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (NoOpLogger) Debug(string, map[string]interface{}) {}
func (NoOpLogger) InfoWithContext(context.Context, string, map[string]interface{})  {}
func (NoOpLogger) WarnWithContext(context.Context, string, map[string]interface{})  {}
func (NoOpLogger) ErrorWithContext(context.Context, string, map[string]interface{}) {}
func (NoOpLogger) DebugWithContext(context.Context, string, map[string]interface{}) {}
func (NoOpLogger) WithComponent(string) Logger                                      { return NoOpLogger{} }

// NoOpTelemetry discards spans and metrics. Used as a safe default by
// providers and components that accept an optional core.Telemetry.
type NoOpTelemetry struct{}

var _ Telemetry = NoOpTelemetry{}

func (NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noOpSpan{}
}
func (NoOpTelemetry) RecordMetric(string, float64, map[string]string) {}

type noOpSpan struct{}

var _ Span = noOpSpan{}

func (noOpSpan) End()                                {}
func (noOpSpan) SetAttribute(string, interface{})    {}
func (noOpSpan) RecordError(error)                   {}

type requestIDKey struct{}

// WithRequestID attaches a request/task id to ctx for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext retrieves a request id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}
