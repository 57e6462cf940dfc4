package ionmetric

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelRegistry emits to an OpenTelemetry meter: counters as Int64Counter and
// timers as Int64Histogram in milliseconds. Instruments are created once per
// name; tags become attributes.
type OTelRegistry struct {
	meter metric.Meter

	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Int64Histogram
}

// NewOTelRegistry returns a registry over meter.
func NewOTelRegistry(meter metric.Meter) *OTelRegistry {
	return &OTelRegistry{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Int64Histogram),
	}
}

func (r *OTelRegistry) Counter(name string, tags TagSet) (Counter, error) {
	c, err := instrument(r, r.counters, name, func() (metric.Int64Counter, error) {
		return r.meter.Int64Counter(name, metric.WithDescription("Number of calls"))
	})
	if err != nil {
		return nil, err
	}
	return otelCounter{counter: c, attrs: attributeOption(tags)}, nil
}

func (r *OTelRegistry) Timer(name string, tags TagSet) (Timer, error) {
	h, err := instrument(r, r.histograms, name, func() (metric.Int64Histogram, error) {
		return r.meter.Int64Histogram(name,
			metric.WithUnit("ms"),
			metric.WithDescription("Call duration"),
		)
	})
	if err != nil {
		return nil, err
	}
	return otelTimer{histogram: h, attrs: attributeOption(tags)}, nil
}

// instrument returns the cached instrument for name or creates it.
func instrument[T any](r *OTelRegistry, cache map[string]T, name string, create func() (T, error)) (T, error) {
	r.mu.RLock()
	inst, ok := cache[name]
	r.mu.RUnlock()
	if ok {
		return inst, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := cache[name]; ok {
		return inst, nil
	}
	inst, err := create()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("create instrument %s: %w", name, err)
	}
	cache[name] = inst
	return inst, nil
}

func attributeOption(tags TagSet) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(tags.Attributes()...))
}

type otelCounter struct {
	counter metric.Int64Counter
	attrs   metric.MeasurementOption
}

func (c otelCounter) Increment(ctx context.Context) error {
	c.counter.Add(ctx, 1, c.attrs)
	return nil
}

type otelTimer struct {
	histogram metric.Int64Histogram
	attrs     metric.MeasurementOption
}

func (t otelTimer) Record(ctx context.Context, d time.Duration) error {
	t.histogram.Record(ctx, d.Milliseconds(), t.attrs)
	return nil
}
