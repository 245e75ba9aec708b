// Package otelmetrics implements observability.MetricsCollector on an
// OpenTelemetry meter.
package otelmetrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/on-the-ground/effect_ive_runtime/effects/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var _ observability.MetricsCollector = (*Collector)(nil)

// Collector creates instruments lazily by name and caches them.
type Collector struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// New returns a collector on provider. A nil provider selects the global
// one.
func New(serviceName string, provider metric.MeterProvider) *Collector {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	return &Collector{
		meter:      provider.Meter(serviceName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (c *Collector) IncrementCounter(ctx context.Context, name string, labels map[string]string) error {
	counter, err := c.counter(name)
	if err != nil {
		return err
	}
	counter.Add(ctx, 1, metric.WithAttributes(attributes(labels)...))
	return nil
}

func (c *Collector) ObserveHistogram(ctx context.Context, name string, value float64, labels map[string]string) error {
	histogram, err := c.histogram(name)
	if err != nil {
		return err
	}
	histogram.Record(ctx, value, metric.WithAttributes(attributes(labels)...))
	return nil
}

func (c *Collector) counter(name string) (metric.Int64Counter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if counter, ok := c.counters[name]; ok {
		return counter, nil
	}
	counter, err := c.meter.Int64Counter(name)
	if err != nil {
		return nil, fmt.Errorf("otelmetrics: invalid counter %q: %w", name, err)
	}
	c.counters[name] = counter
	return counter, nil
}

func (c *Collector) histogram(name string) (metric.Float64Histogram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if histogram, ok := c.histograms[name]; ok {
		return histogram, nil
	}
	histogram, err := c.meter.Float64Histogram(name)
	if err != nil {
		return nil, fmt.Errorf("otelmetrics: invalid histogram %q: %w", name, err)
	}
	c.histograms[name] = histogram
	return histogram, nil
}

func attributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
