// Package observability provides OpenTelemetry metrics (Prometheus or OTLP exporter) and optional tracing.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	meterScope         = "github.com/grantwise/reviewstore/internal/observability"
	defaultServiceName = "reviewstore"
	cardinalityLimit   = 2000

	metricExportInterval = 60 * time.Second
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds) for the search duration histogram.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider and metrics.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: reviewstore).
	ServiceName string
	// Exporter selects the metrics exporter: "prometheus" (pull, scrape the returned handler)
	// or "otlp" (push over HTTP, endpoint from OTEL_EXPORTER_OTLP_ENDPOINT).
	// Empty or unknown disables metrics.
	Exporter string
}

// NewMeterProvider creates a MeterProvider for the configured exporter and returns the
// provider, an HTTP handler for /metrics (Prometheus exporter only, nil otherwise), and
// the metric collectors bound to the provider's Meter. All return values are nil when
// metrics are disabled. Caller must call provider.Shutdown on exit.
func NewMeterProvider(ctx context.Context, cfg MeterProviderConfig) (provider MeterProviderShutdown, metricsHandler http.Handler, metrics *Metrics, err error) {
	var reader sdkmetric.Reader

	switch cfg.Exporter {
	case "prometheus":
		reg := prometheus.NewRegistry()

		exporter, expErr := prometheusexporter.New(
			prometheusexporter.WithRegisterer(reg),
		)
		if expErr != nil {
			return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", expErr)
		}

		reader = exporter
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case "otlp":
		// SDK reads OTEL_EXPORTER_OTLP_ENDPOINT (and scheme/insecure) from env.
		exporter, expErr := otlpmetrichttp.New(ctx)
		if expErr != nil {
			return nil, nil, nil, fmt.Errorf("create OTLP metric exporter: %w", expErr)
		}

		reader = sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(metricExportInterval),
		)
	default:
		//nolint:nilnil // intentional: metrics disabled or unsupported exporter, caller checks for nil
		return nil, nil, nil, nil
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(newResource(cfg.ServiceName)),
		sdkmetric.WithReader(reader),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: MetricNameSearchDuration},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)
	provider = mp
	meter := mp.Meter(meterScope)

	metrics, err = NewMetrics(meter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create metrics instruments: %w", err)
	}

	return provider, metricsHandler, metrics, nil
}
