// metrics.go - Prometheus-Metriken ueber OpenTelemetry
// Enthaelt: metrics, newMetrics(), observePrediction(), observeTuningUnavailable()

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Werte des status-Labels
const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
	statusInvalid   = "invalid"
)

type metrics struct {
	model    string
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	predictions       metric.Int64Counter
	predictionTime    metric.Float64Histogram
	tuningUnavailable metric.Int64Counter
}

// newMetrics bootstraps the OpenTelemetry pipeline with a Prometheus
// exporter on its own registry. Call shutdown for cleanup.
func newMetrics(model string) (*metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("github.com/fluxserve/fluxserve/server")

	predictions, err := meter.Int64Counter("fluxserve_predictions",
		metric.WithDescription("predictions by final status"))
	if err != nil {
		return nil, err
	}

	predictionTime, err := meter.Float64Histogram("fluxserve_prediction",
		metric.WithDescription("prediction wall time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	tuningUnavailable, err := meter.Int64Counter("fluxserve_tuning_unavailable",
		metric.WithDescription("predictions that ran without cache tuning"))
	if err != nil {
		return nil, err
	}

	return &metrics{
		model:             model,
		registry:          registry,
		provider:          provider,
		predictions:       predictions,
		predictionTime:    predictionTime,
		tuningUnavailable: tuningUnavailable,
	}, nil
}

func (m *metrics) observePrediction(status string, d time.Duration) {
	ctx := context.Background()
	m.predictions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", m.model),
		attribute.String("status", status),
	))
	m.predictionTime.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("model", m.model)))
}

func (m *metrics) observeTuningUnavailable() {
	m.tuningUnavailable.Add(context.Background(), 1, metric.WithAttributes(attribute.String("model", m.model)))
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
