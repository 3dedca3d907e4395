// Package telemetry wires OpenTelemetry tracer and meter providers the way
// the teacher's telemetry module does (resource-tagged SDK providers
// registered as process globals), generalized to the gateway's ambient
// observability needs: request tracing and a small set of counters that
// breaker.Table can optionally report through.
//
// Grounded on telemetry.OTelProvider/NewOTelProvider (resource construction,
// global provider registration, graceful Shutdown), trimmed to the SDK
// packages already in this module's dependency set — no OTLP exporter is
// wired, since wiring one pulls in exporter packages the teacher's other
// modules, not the telemetry module itself, depend on.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/intentgw/gateway/breaker"
)

// Provider owns the process-wide tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	mu       sync.Mutex
	shutdown bool
}

// Setup builds resource-tagged SDK providers for serviceName and installs
// them as the otel package globals, so otel.Tracer/otel.Meter calls
// anywhere in the process pick them up without threading a Provider
// through every constructor.
func Setup(serviceName string) (*Provider, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Provider{
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         tp.Tracer(serviceName),
		meter:          mp.Meter(serviceName),
	}, nil
}

// Tracer returns the process tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Meter returns the process meter.
func (p *Provider) Meter() metric.Meter { return p.meter }

// Shutdown flushes and releases both providers. Safe to call more than
// once.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return nil
	}
	p.shutdown = true

	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.meterProvider.Shutdown(ctx)
}

// Metrics adapts a Provider's meter into the small counters the gateway's
// breaker package optionally reports through (grounded on
// resilience.MetricsCollector's role as an optional collaborator).
type Metrics struct {
	stateChanges metric.Int64Counter
	rejections   metric.Int64Counter
	successes    metric.Int64Counter
	failures     metric.Int64Counter
}

// NewMetrics builds a Metrics collector from p's meter. Instrument creation
// errors are swallowed to a no-op counter rather than failing startup —
// metrics are an optional ambient concern, not a correctness requirement.
func NewMetrics(p *Provider) *Metrics {
	m := &Metrics{}
	m.stateChanges, _ = p.meter.Int64Counter("gateway.breaker.state_changes")
	m.rejections, _ = p.meter.Int64Counter("gateway.breaker.rejections")
	m.successes, _ = p.meter.Int64Counter("gateway.breaker.successes")
	m.failures, _ = p.meter.Int64Counter("gateway.breaker.failures")
	return m
}

// RecordSuccess increments the per-service success counter.
func (m *Metrics) RecordSuccess(service string) {
	if m.successes != nil {
		m.successes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("service", service)))
	}
}

// RecordFailure increments the per-service failure counter.
func (m *Metrics) RecordFailure(service string) {
	if m.failures != nil {
		m.failures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("service", service)))
	}
}

// RecordStateChange increments the per-service breaker transition counter.
func (m *Metrics) RecordStateChange(service string, from, to breaker.State) {
	if m.stateChanges != nil {
		m.stateChanges.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("from", from.String()),
			attribute.String("to", to.String()),
		))
	}
}

// RecordRejection increments the per-service fail-fast rejection counter.
func (m *Metrics) RecordRejection(service string) {
	if m.rejections != nil {
		m.rejections.Add(context.Background(), 1, metric.WithAttributes(attribute.String("service", service)))
	}
}
