// Package observability assembles the checkout service's telemetry from the
// concrete tracer, logger and metric adapters.
package observability

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Zhima-Mochi/checkout-payment/internal/observability"
)

// InstrumentError reports instruments handed to New under keys the service
// does not declare, or with the wrong instrument type.
type InstrumentError struct {
	Counters   []observability.MetricKey
	Histograms []observability.MetricKey
}

func (e *InstrumentError) Error() string {
	var parts []string
	if len(e.Counters) > 0 {
		parts = append(parts, "counters "+joinKeys(e.Counters))
	}
	if len(e.Histograms) > 0 {
		parts = append(parts, "histograms "+joinKeys(e.Histograms))
	}
	return "observability: undeclared metric keys: " + strings.Join(parts, "; ")
}

func joinKeys(keys []observability.MetricKey) string {
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = string(k)
	}
	slices.Sort(s)
	return strings.Join(s, ", ")
}

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics *checkoutMetrics
}

// checkoutMetrics resolves the service's declared keys. A declared key with
// no instrument behind it records nothing; an undeclared key is a wiring bug.
type checkoutMetrics struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m *checkoutMetrics) Counter(name observability.MetricKey) observability.Counter {
	c, ok := m.counters[name]
	if !ok {
		panic(fmt.Sprintf("observability: counter %q is not declared", name))
	}
	return c
}

func (m *checkoutMetrics) Histogram(name observability.MetricKey) observability.Histogram {
	h, ok := m.histograms[name]
	if !ok {
		panic(fmt.Sprintf("observability: histogram %q is not declared", name))
	}
	return h
}

// New builds the provider handed to the payment use case and HTTP handler.
// Instruments must be keyed by observability.CounterKeys and
// observability.HistogramKeys; any other key fails with *InstrumentError.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) (observability.Observability, error) {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	m := &checkoutMetrics{
		counters:   make(map[observability.MetricKey]observability.Counter, len(observability.CounterKeys)),
		histograms: make(map[observability.MetricKey]observability.Histogram, len(observability.HistogramKeys)),
	}
	for _, k := range observability.CounterKeys {
		m.counters[k] = observability.NopCounter()
	}
	for _, k := range observability.HistogramKeys {
		m.histograms[k] = observability.NopHistogram()
	}

	var bad InstrumentError
	for k, c := range counters {
		if _, ok := m.counters[k]; !ok {
			bad.Counters = append(bad.Counters, k)
			continue
		}
		if c != nil {
			m.counters[k] = c
		}
	}
	for k, h := range histograms {
		if _, ok := m.histograms[k]; !ok {
			bad.Histograms = append(bad.Histograms, k)
			continue
		}
		if h != nil {
			m.histograms[k] = h
		}
	}
	if len(bad.Counters) > 0 || len(bad.Histograms) > 0 {
		return nil, &bad
	}

	return &provider{tracer: tracer, logger: logger, metrics: m}, nil
}

func (p *provider) Tracer() observability.Tracer   { return p.tracer }
func (p *provider) Logger() observability.Logger   { return p.logger }
func (p *provider) Metrics() observability.Metrics { return p.metrics }
