package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/config"
	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

// Telemetry records scan-level metrics. Close flushes pending spans.
type Telemetry interface {
	RecordScan(ctx context.Context, report *idor.Report, err error)
	Close() error
}

type telemetry struct {
	meter          metric.Meter
	tracerProvider *sdktrace.TracerProvider

	scanCounter    metric.Int64Counter
	scanDuration   metric.Float64Histogram
	requestCounter metric.Int64Counter
	diffCounter    metric.Int64Counter
}

func New(ctx context.Context, cfg config.TelemetryConfig) (Telemetry, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter

	switch cfg.ExporterType {
	case "otlp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t, err := newInstruments(otel.Meter(cfg.ServiceName))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	t.tracerProvider = tp
	return t, nil
}

func newInstruments(meter metric.Meter) (*telemetry, error) {
	scanCounter, err := meter.Int64Counter("idorscan.scans.total",
		metric.WithDescription("Total number of scans"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	scanDuration, err := meter.Float64Histogram("idorscan.scan.duration",
		metric.WithDescription("Scan duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestCounter, err := meter.Int64Counter("idorscan.requests.total",
		metric.WithDescription("Requests issued, by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	diffCounter, err := meter.Int64Counter("idorscan.diffs.total",
		metric.WithDescription("Responses that deviate from the baseline, by kind"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		meter:          meter,
		scanCounter:    scanCounter,
		scanDuration:   scanDuration,
		requestCounter: requestCounter,
		diffCounter:    diffCounter,
	}, nil
}

func (t *telemetry) RecordScan(ctx context.Context, report *idor.Report, err error) {
	t.scanCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("scan.success", err == nil)))
	if report == nil {
		return
	}

	t.scanDuration.Record(ctx, report.Duration.Seconds())

	stats := report.Stats
	t.requestCounter.Add(ctx, int64(stats.Success), metric.WithAttributes(attribute.String("request.outcome", "success")))
	t.requestCounter.Add(ctx, int64(stats.Errors), metric.WithAttributes(attribute.String("request.outcome", "error")))
	t.diffCounter.Add(ctx, int64(stats.StatusChanges), metric.WithAttributes(attribute.String("diff.kind", "status")))
	t.diffCounter.Add(ctx, int64(stats.LengthChanges), metric.WithAttributes(attribute.String("diff.kind", "length")))
}

func (t *telemetry) Close() error {
	if t.tracerProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.tracerProvider.Shutdown(ctx)
}

type noopTelemetry struct{}

// Noop returns a Telemetry that records nothing
func Noop() Telemetry { return noopTelemetry{} }

func (noopTelemetry) RecordScan(ctx context.Context, report *idor.Report, err error) {}
func (noopTelemetry) Close() error                                                  { return nil }
