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

// Observability owns the OpenTelemetry meter used by the chat entry point.
// A zero value is valid and records nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	chatCounter   otelmetric.Int64Counter
	chatDuration  otelmetric.Float64Histogram
}

// New registers a Prometheus-backed meter provider. Exporter failures leave
// a no-op instance so startup never depends on metrics.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	chatCounter, err := meter.Int64Counter(
		"chat.messages.handled",
		otelmetric.WithDescription("Number of chat messages handled"),
	)
	if err != nil {
		return &Observability{meterProvider: provider}, err
	}

	chatDuration, err := meter.Float64Histogram(
		"chat.messages.duration",
		otelmetric.WithDescription("Chat message handling duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return &Observability{meterProvider: provider, chatCounter: chatCounter}, err
	}

	return &Observability{
		meterProvider: provider,
		chatCounter:   chatCounter,
		chatDuration:  chatDuration,
	}, nil
}

// RecordChat records one handled message with its intent and fallback tier.
func (o *Observability) RecordChat(ctx context.Context, intent, fallbackType string, duration time.Duration) {
	if o == nil {
		return
	}
	if fallbackType == "" {
		fallbackType = "none"
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("intent", intent),
		attribute.String("fallback", fallbackType),
	)
	if o.chatCounter != nil {
		o.chatCounter.Add(ctx, 1, attrs)
	}
	if o.chatDuration != nil {
		o.chatDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
