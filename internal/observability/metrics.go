package observability

import (
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/mixcore/internal/errors"
	"github.com/tphakala/mixcore/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Mixer    *metrics.MixerMetrics
	Samples  *metrics.SampleMetrics
}

// NewMetrics creates a registry with runtime collectors and every mixcore
// collector registered on it.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, wrapMetricsError(err, "go")
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, wrapMetricsError(err, "process")
	}

	mixerMetrics, err := metrics.NewMixerMetrics(registry)
	if err != nil {
		return nil, wrapMetricsError(err, "mixer")
	}

	sampleMetrics, err := metrics.NewSampleMetrics(registry)
	if err != nil {
		return nil, wrapMetricsError(err, "samples")
	}

	return &Metrics{
		registry: registry,
		Mixer:    mixerMetrics,
		Samples:  sampleMetrics,
	}, nil
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}

func wrapMetricsError(err error, collector string) error {
	return errors.New(err).
		Component("observability").
		Category(errors.CategoryConfiguration).
		Context("collector", collector).
		Build()
}
