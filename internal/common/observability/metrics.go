// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OpenTelemetry meter (exported through Prometheus)
// and, when configured, the tracer provider.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	predictions   otelmetric.Int64Counter
	latency       otelmetric.Float64Histogram
	tracing       *Tracing
}

// New registers a Prometheus-backed meter provider. Failure to create the
// exporter degrades to a recorder that drops measurements.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	predictions, _ := meter.Int64Counter(
		"career.predictions",
		otelmetric.WithDescription("Number of prediction calls"),
	)

	latency, _ := meter.Float64Histogram(
		"career.prediction.duration",
		otelmetric.WithDescription("Prediction call duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		predictions:   predictions,
		latency:       latency,
	}, nil
}

// AttachTracing hands ownership of a tracer provider to Shutdown.
func (o *Observability) AttachTracing(t *Tracing) {
	o.tracing = t
}

func (o *Observability) RecordPrediction(ctx context.Context, source, status string) {
	if o == nil || o.predictions == nil {
		return
	}
	o.predictions.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordDuration(ctx context.Context, duration time.Duration, source, status string) {
	if o == nil || o.latency == nil {
		return
	}
	o.latency.Record(ctx, float64(duration.Microseconds())/1000, otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	var firstErr error
	if o.tracing != nil {
		if err := o.tracing.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
