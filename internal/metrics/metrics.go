// Package metrics exports sensor loop counters in the Prometheus format. It
// uses its own registry so tests can build as many instances as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/parking.assist/internal/proximity"
	"github.com/banshee-data/parking.assist/internal/sensor"
)

const namespace = "parkassist"

// Result labels for the measurements counter.
const (
	ResultMeasured    = "measured"
	ResultTimeoutRise = "timeout_rise"
	ResultTimeoutFall = "timeout_fall"
	ResultError       = "error"
)

// Metrics implements the sensor loop's observer.
type Metrics struct {
	registry *prometheus.Registry

	measurements *prometheus.CounterVec
	distance     prometheus.Gauge
	echo         prometheus.Histogram
	band         *prometheus.GaugeVec
}

// New registers every collector on a fresh registry. withRuntime adds the Go
// runtime and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_total",
			Help:      "Ranging cycles by outcome.",
		}, []string{"result"}),
		distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distance_cm",
			Help:      "Last valid distance in centimetres.",
		}),
		echo: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "echo_seconds",
			Help:      "Echo pulse width of successful ranging cycles.",
			// 58µs per cm: roughly 1cm to 4m
			Buckets: prometheus.ExponentialBuckets(58e-6, 2, 9),
		}),
		band: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "band",
			Help:      "1 for the proximity band currently shown, 0 otherwise.",
		}, []string{"band"}),
	}
	m.distance.Set(float64(sensor.InvalidDistance))

	m.registry.MustRegister(m.measurements, m.distance, m.echo, m.band)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, r := range []string{ResultMeasured, ResultTimeoutRise, ResultTimeoutFall, ResultError} {
		m.measurements.WithLabelValues(r)
	}
	for _, b := range []proximity.Band{proximity.Invalid, proximity.Near, proximity.Mid, proximity.Far, proximity.Clear} {
		m.band.WithLabelValues(b.String())
	}
	return m
}

// Measured records the outcome of one ranging cycle.
func (m *Metrics) Measured(meas sensor.Measurement, d sensor.Distance) {
	switch {
	case meas.TimedOut && meas.Stage == sensor.StageFall:
		m.measurements.WithLabelValues(ResultTimeoutFall).Inc()
	case meas.TimedOut:
		m.measurements.WithLabelValues(ResultTimeoutRise).Inc()
	default:
		m.measurements.WithLabelValues(ResultMeasured).Inc()
		m.echo.Observe(meas.Echo.Seconds())
		m.distance.Set(float64(d))
	}
}

// Failed records a ranging cycle aborted by a line error.
func (m *Metrics) Failed(error) {
	m.measurements.WithLabelValues(ResultError).Inc()
}

// BandChanged records the band now shown.
func (m *Metrics) BandChanged(from, to proximity.Band) {
	m.band.WithLabelValues(from.String()).Set(0)
	m.band.WithLabelValues(to.String()).Set(1)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
