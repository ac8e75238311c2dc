// Package metrics adapts OpenTelemetry metrics to the small IncCounter /
// ObserveHistogram seam the orchestrator depends on, so it can run with a
// real meter provider in production and a recording fake in tests. The
// query service records no metrics.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider installs a process-wide otel MeterProvider backed by an
// in-process manual reader and returns its shutdown func. There is no
// metrics backend in this deployment shape (spec.md names none), so
// instruments accumulate against the reader rather than an OTLP exporter.
func InitMeterProvider() func(context.Context) error {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return provider.Shutdown
}

// Recorder is a thin adapter over an otel Meter, caching instruments by
// name so repeated IncCounter/ObserveHistogram calls don't re-create them.
type Recorder struct {
	meter metric.Meter

	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewRecorder builds a Recorder using the global meter provider under the
// given instrumentation name.
func NewRecorder(name string) *Recorder {
	return &Recorder{
		meter:      otel.Meter(name),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (r *Recorder) IncCounter(name string, labels map[string]string) {
	if r == nil {
		return
	}
	c, ok := r.counter(name)
	if !ok {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(toAttrs(labels)...))
}

func (r *Recorder) ObserveHistogram(name string, value float64, labels map[string]string) {
	if r == nil {
		return
	}
	h, ok := r.histogram(name)
	if !ok {
		return
	}
	h.Record(context.Background(), value, metric.WithAttributes(toAttrs(labels)...))
}

func (r *Recorder) counter(name string) (metric.Int64Counter, bool) {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c, true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; ok {
		return c, true
	}
	ctr, err := r.meter.Int64Counter(name)
	if err != nil {
		return ctr, false
	}
	r.counters[name] = ctr
	return ctr, true
}

func (r *Recorder) histogram(name string) (metric.Float64Histogram, bool) {
	r.mu.RLock()
	h, ok := r.histograms[name]
	r.mu.RUnlock()
	if ok {
		return h, true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok = r.histograms[name]; ok {
		return h, true
	}
	hist, err := r.meter.Float64Histogram(name)
	if err != nil {
		return hist, false
	}
	r.histograms[name] = hist
	return hist, true
}

func toAttrs(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		out = append(out, attribute.String(k, v))
	}
	return out
}
