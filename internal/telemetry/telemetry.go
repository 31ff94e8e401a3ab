package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Telemetry holds the metric instruments for a batch run. Metrics are pushed
// to an OTLP collector; a disabled instance is a safe no-op.
type Telemetry struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	filesDownloaded   metric.Int64Counter
	downloadsSkipped  metric.Int64Counter
	deliveriesSent    metric.Int64Counter
	deliveryFailures  metric.Int64Counter
	dbOperationsTotal metric.Int64Counter
	dbOperationTime   metric.Float64Histogram
}

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
}

// New creates a new telemetry instance. When disabled, all recording methods
// are no-ops.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp metric exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)

	otel.SetMeterProvider(meterProvider)

	t := &Telemetry{
		meterProvider: meterProvider,
		meter:         otel.Meter(cfg.ServiceName),
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	if t.filesDownloaded, err = t.meter.Int64Counter("files_downloaded_total",
		metric.WithDescription("Number of archive files downloaded")); err != nil {
		return err
	}

	if t.downloadsSkipped, err = t.meter.Int64Counter("downloads_skipped_total",
		metric.WithDescription("Number of downloads skipped as already present or unchanged")); err != nil {
		return err
	}

	if t.deliveriesSent, err = t.meter.Int64Counter("deliveries_sent_total",
		metric.WithDescription("Number of files delivered to a chat")); err != nil {
		return err
	}

	if t.deliveryFailures, err = t.meter.Int64Counter("delivery_failures_total",
		metric.WithDescription("Number of failed chat deliveries")); err != nil {
		return err
	}

	if t.dbOperationsTotal, err = t.meter.Int64Counter("db_operations_total",
		metric.WithDescription("Number of record store operations")); err != nil {
		return err
	}

	if t.dbOperationTime, err = t.meter.Float64Histogram("db_operation_duration_seconds",
		metric.WithDescription("Record store operation duration")); err != nil {
		return err
	}

	return nil
}

// Shutdown flushes any buffered metrics. Batch runs call this before exit.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.meterProvider == nil {
		return nil
	}

	return t.meterProvider.Shutdown(ctx)
}

// RecordDownload records a completed file download.
func (t *Telemetry) RecordDownload(ctx context.Context) {
	if t.filesDownloaded != nil {
		t.filesDownloaded.Add(ctx, 1)
	}
}

// RecordDownloadSkipped records a fetch-or-skip decision that ended in a skip.
func (t *Telemetry) RecordDownloadSkipped(ctx context.Context, reason string) {
	if t.downloadsSkipped != nil {
		t.downloadsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// RecordDelivery records a chat delivery attempt.
func (t *Telemetry) RecordDelivery(ctx context.Context, success bool) {
	if success {
		if t.deliveriesSent != nil {
			t.deliveriesSent.Add(ctx, 1)
		}

		return
	}

	if t.deliveryFailures != nil {
		t.deliveryFailures.Add(ctx, 1)
	}
}

// InstrumentDBOperation runs fn and records the operation count and duration.
func (t *Telemetry) InstrumentDBOperation(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)

	if t.dbOperationsTotal != nil {
		t.dbOperationsTotal.Add(ctx, 1, attrs)
	}

	if t.dbOperationTime != nil {
		t.dbOperationTime.Record(ctx, duration.Seconds(), attrs)
	}

	return err
}
