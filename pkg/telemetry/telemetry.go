// Package telemetry provides a standardized, one-stop-shop for setting
// up OpenTelemetry metrics, exported over Prometheus.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// Config holds the configuration for the telemetry system.
type Config struct {
	// Enabled toggles the entire telemetry system on or off.
	Enabled bool `yaml:"enabled"`
	// ServiceName is the name that will appear on exported metrics.
	ServiceName string `yaml:"service_name"`
	// PrometheusPort is the port on which to expose the /metrics endpoint.
	PrometheusPort int `yaml:"prometheus_port"`
}

// Telemetry represents the active telemetry components.
type Telemetry struct {
	MeterProvider *sdkmetric.MeterProvider
	Meter         metric.Meter
}

// ShutdownFunc gracefully shuts down the telemetry providers.
type ShutdownFunc func(ctx context.Context) error

// New initializes the OpenTelemetry SDK for metrics, backed by a
// Prometheus exporter served on PrometheusPort. When disabled, it
// returns a no-op meter so callers never need to branch on Config.
func New(config Config) (*Telemetry, ShutdownFunc, error) {
	if !config.Enabled {
		return &Telemetry{
			MeterProvider: nil,
			Meter:         noop.NewMeterProvider().Meter(""),
		}, func(ctx context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: fmt.Sprintf(":%d", config.PrometheusPort), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			otel.Handle(fmt.Errorf("prometheus http server failed: %w", err))
		}
	}()

	otel.SetMeterProvider(meterProvider)

	tel := &Telemetry{
		MeterProvider: meterProvider,
		Meter:         meterProvider.Meter(config.ServiceName),
	}

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown meter provider: %w", err)
		}
		return nil
	}

	return tel, shutdown, nil
}
