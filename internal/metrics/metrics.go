// Package metrics registers Tower's Prometheus collectors and serves them
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles the gauges and counters Tower updates every tick or on
// state transitions. A fresh prometheus.Registry is used (rather than the
// global default) so tests can spin up independent instances without
// colliding on metric registration.
type Registry struct {
	reg *prometheus.Registry

	PCMRingFillRatio prometheus.Gauge
	MP3BufferDepth   prometheus.Gauge
	ClientCount      prometheus.Gauge
	EncoderRestarts  prometheus.Counter
	UptimeSeconds    prometheus.CounterFunc
}

// New builds and registers a Registry. uptimeFn should return seconds
// since process start.
func New(uptimeFn func() float64) *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		reg: reg,
		PCMRingFillRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "pcm_ring_fill_ratio",
			Help:      "Fraction of the PCM ingest ring buffer currently occupied.",
		}),
		MP3BufferDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "mp3_buffer_depth",
			Help:      "Number of encoded MP3 frames currently queued for broadcast.",
		}),
		ClientCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "client_count",
			Help:      "Number of currently connected /stream listeners.",
		}),
		EncoderRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "encoder_restart_total",
			Help:      "Total number of encoder subprocess restarts.",
		}),
		UptimeSeconds: factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "uptime_seconds",
			Help:      "Seconds since this Tower process started.",
		}, uptimeFn),
	}
	return r
}

// Gatherer exposes the underlying prometheus.Registry for wiring into an
// http.Handler via promhttp.HandlerFor.
func (r *Registry) Gatherer() *prometheus.Registry { return r.reg }
