package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry combines logging, tracing, metrics and change events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	return newTelemetry(cfg, logger)
}

// NewTelemetryWithLogger creates a telemetry instance around an existing logger.
func NewTelemetryWithLogger(cfg *Config, logger *Logger) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newTelemetry(cfg, logger)
}

func newTelemetry(cfg *Config, logger *Logger) (*Telemetry, error) {
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  NewEventPublisher(cfg.Events),
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes traces and stops the metrics server.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return t.Metrics.StopMetricsServer()
}

// StartMetricsServer starts the metrics HTTP server if one is configured.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// classedError is implemented by errors that carry a classification.
type classedError interface {
	ClassName() string
}

// errorClass returns the classification of err, "unknown" if it has none.
func errorClass(err error) string {
	var ce classedError
	if errors.As(err, &ce) {
		return ce.ClassName()
	}
	return "unknown"
}

// RecordStoreOperation runs fn inside a span, timing it and counting the
// outcome. Without telemetry in ctx it simply calls fn.
func RecordStoreOperation(ctx context.Context, backend, operation string, fn func(ctx context.Context) error) error {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return fn(ctx)
	}

	var span trace.Span
	ctx, span = tel.Tracer.StartStoreSpan(ctx, backend, operation)
	defer span.End()

	timer := NewTimer()
	err := fn(ctx)
	duration := timer.Duration()

	logger := tel.Logger.WithBackend(backend).WithField("operation", operation)
	if err != nil {
		class := errorClass(err)
		span.SetAttributes(AttrErrorClass.String(class))
		RecordError(span, err)
		tel.Metrics.RecordOperation(backend, operation, "error", duration)
		tel.Metrics.RecordError(class)
		logger.WithError(err).WithField("class", class).Debug("Store operation failed")
		return err
	}

	RecordSuccess(span)
	tel.Metrics.RecordOperation(backend, operation, "ok", duration)
	logger.WithField("duration", duration.String()).Debug("Store operation completed")
	return nil
}

// PublishRecordEvent publishes a record change event through the telemetry in ctx.
func PublishRecordEvent(ctx context.Context, eventType, recordID, message string) {
	publish(ctx, Event{Type: eventType, RecordID: recordID, Message: message})
}

// PublishStoreEvent publishes a whole-store event through the telemetry in ctx.
func PublishStoreEvent(ctx context.Context, eventType, source, message string) {
	publish(ctx, Event{Type: eventType, Source: source, Message: message})
}

func publish(ctx context.Context, event Event) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent(event.Type, trace.WithAttributes(AttrRecordID.String(event.RecordID)))
	}
	tel.Metrics.RecordEvent(event.Type)
	tel.Events.Publish(event)
}
