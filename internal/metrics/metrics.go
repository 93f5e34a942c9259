package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the recording counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	reg *prometheus.Registry

	recordings       *prometheus.CounterVec
	capturedBytes    prometheus.Counter
	malformedBuffers prometheus.Counter
	recordingSeconds prometheus.Histogram
}

// New creates the metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	return &Metrics{
		reg: reg,

		recordings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxrec_recordings_total",
			Help: "Number of finished recordings by outcome",
		}, []string{"outcome"}),
		capturedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "voxrec_captured_bytes_total",
			Help: "PCM bytes forwarded to recording sinks",
		}),
		malformedBuffers: f.NewCounter(prometheus.CounterOpts{
			Name: "voxrec_malformed_buffers_total",
			Help: "Buffers delivered with a non-positive or out of range length",
		}),
		recordingSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxrec_recording_seconds",
			Help:    "Wall-clock time spent per recording",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

// Registry returns the registry the metrics live on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveRecording records one finished recording
func (m *Metrics) ObserveRecording(outcome string, bytes int64, seconds float64) {
	if m == nil {
		return
	}
	m.recordings.WithLabelValues(outcome).Inc()
	m.capturedBytes.Add(float64(bytes))
	m.recordingSeconds.Observe(seconds)
}

// MalformedBuffer counts a rejected buffer
func (m *Metrics) MalformedBuffer() {
	if m == nil {
		return
	}
	m.malformedBuffers.Inc()
}
