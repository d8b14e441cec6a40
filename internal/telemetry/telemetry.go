// Package telemetry emits named attributes and counters for the retrieval
// pipeline. It owns no transport: spans and metrics go to OpenTelemetry
// providers, which the embedding application configures. When disabled,
// every operation is a no-op.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// ScopeName is the instrumentation scope for pipeline telemetry.
	ScopeName = "cursor-journal"
)

// Provider wraps the tracer and meter with cleanup.
type Provider struct {
	Tracer   trace.Tracer
	Meter    metric.Meter
	shutdown func(context.Context) error
}

// Init sets up tracing and metrics. With enabled false it returns a no-op
// provider with zero overhead.
func Init(ctx context.Context, enabled bool) (*Provider, error) {
	if !enabled {
		return &Provider{
			Tracer:   tracenoop.NewTracerProvider().Tracer(ScopeName),
			Meter:    metricnoop.NewMeterProvider().Meter(ScopeName),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ScopeName),
			attribute.String("run.id", uuid.NewString()),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
	)

	return &Provider{
		Tracer: tp.Tracer(ScopeName),
		Meter:  mp.Meter(ScopeName),
		shutdown: func(ctx context.Context) error {
			tErr := tp.Shutdown(ctx)
			mErr := mp.Shutdown(ctx)
			if tErr != nil {
				return tErr
			}
			return mErr
		},
	}, nil
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}

// Recorder holds the pipeline's metric instruments.
type Recorder struct {
	WorkspacesFound   metric.Int64Counter
	StoresFiltered    metric.Int64Counter
	MessagesTruncated metric.Int64Counter
	CacheLookups      metric.Int64Counter
	FilterReduction   metric.Float64Histogram
}

// NewRecorder creates all instruments from the given meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error

	r.WorkspacesFound, err = meter.Int64Counter("cursor_journal.workspaces.found",
		metric.WithDescription("Validated workspaces discovered per run"),
	)
	if err != nil {
		return nil, err
	}

	r.StoresFiltered, err = meter.Int64Counter("cursor_journal.stores.filtered",
		metric.WithDescription("Store chunks dropped by the recency filter"),
	)
	if err != nil {
		return nil, err
	}

	r.MessagesTruncated, err = meter.Int64Counter("cursor_journal.messages.truncated",
		metric.WithDescription("Messages removed by per-role limiting"),
	)
	if err != nil {
		return nil, err
	}

	r.CacheLookups, err = meter.Int64Counter("cursor_journal.validity_cache.lookups",
		metric.WithDescription("Workspace validity cache lookups, by outcome attribute"),
	)
	if err != nil {
		return nil, err
	}

	r.FilterReduction, err = meter.Float64Histogram("cursor_journal.filter.reduction_pct",
		metric.WithDescription("Boundary filter reduction percentage per commit"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Attribute keys emitted on spans.
var (
	KeyWindowStrategy    = attribute.Key("window.strategy")
	KeyWorkspaceCount    = attribute.Key("workspaces.count")
	KeyFilterBeforeCount = attribute.Key("filter.before")
	KeyFilterAfterCount  = attribute.Key("filter.after")
	KeyCacheOutcome      = attribute.Key("cache.outcome")
)
