package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is the collaborator the orchestrator, cache and synthesis engine
// report into. It replaces module-level counters: the composition root builds
// one implementation and injects it everywhere.
type Metrics interface {
	RecordValidation(ctx context.Context, risk string, cached bool, duration time.Duration)
	RecordModuleFault(ctx context.Context, moduleID string)
	RecordSynthesis(ctx context.Context, success bool, iterations int, duration time.Duration)
	CacheHit()
	CacheMiss()
}

// NopMetrics discards everything. Default for tests and library embedding.
type NopMetrics struct{}

func (NopMetrics) RecordValidation(context.Context, string, bool, time.Duration) {}
func (NopMetrics) RecordModuleFault(context.Context, string)                     {}
func (NopMetrics) RecordSynthesis(context.Context, bool, int, time.Duration)     {}
func (NopMetrics) CacheHit()                                                     {}
func (NopMetrics) CacheMiss()                                                    {}

// OTelMetrics implements Metrics on OpenTelemetry instruments.
type OTelMetrics struct {
	validations  metric.Int64Counter
	moduleFaults metric.Int64Counter
	syntheses    metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
}

// NewOTelMetrics builds the instrument set on the provider's meter.
func NewOTelMetrics(p *Provider) (*OTelMetrics, error) {
	meter := p.Meter()
	m := &OTelMetrics{}
	var err error

	if m.validations, err = meter.Int64Counter("veridoc.validations.total",
		metric.WithDescription("Total validation runs"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}
	if m.moduleFaults, err = meter.Int64Counter("veridoc.module_faults.total",
		metric.WithDescription("Module executions recovered from an internal fault"),
		metric.WithUnit("{fault}"),
	); err != nil {
		return nil, err
	}
	if m.syntheses, err = meter.Int64Counter("veridoc.syntheses.total",
		metric.WithDescription("Total synthesis runs"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}
	if m.durationHist, err = meter.Float64Histogram("veridoc.operation.duration",
		metric.WithDescription("Operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter("veridoc.cache.hits",
		metric.WithDescription("Validation cache hits"),
		metric.WithUnit("{hit}"),
	); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = meter.Int64Counter("veridoc.cache.misses",
		metric.WithDescription("Validation cache misses"),
		metric.WithUnit("{miss}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *OTelMetrics) RecordValidation(ctx context.Context, risk string, cached bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("risk", risk),
		attribute.Bool("cached", cached),
	)
	m.validations.Add(ctx, 1, attrs)
	m.durationHist.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("operation", "validate")))
}

func (m *OTelMetrics) RecordModuleFault(ctx context.Context, moduleID string) {
	m.moduleFaults.Add(ctx, 1, metric.WithAttributes(attribute.String("module", moduleID)))
}

func (m *OTelMetrics) RecordSynthesis(ctx context.Context, success bool, iterations int, duration time.Duration) {
	m.syntheses.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
		attribute.Int("iterations", iterations),
	))
	m.durationHist.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("operation", "synthesize")))
}

func (m *OTelMetrics) CacheHit() {
	m.cacheHits.Add(context.Background(), 1)
}

func (m *OTelMetrics) CacheMiss() {
	m.cacheMisses.Add(context.Background(), 1)
}
