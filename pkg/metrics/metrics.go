// Package metrics exports reliability, congestion, and discovery gauges
// and counters through github.com/prometheus/client_golang, following
// linkerd2's promauto.New*Vec-bundled-in-a-struct style. It backs the
// participant builder's optional enable_stats reporter (spec.md §6).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reporter bundles every metric a participant updates over its lifetime.
// Each is registered against its own prometheus.Registry rather than the
// global DefaultRegisterer, so multiple participants in one process (or
// in tests) never collide on metric names.
type Reporter struct {
	registry *prometheus.Registry

	RemoteParticipants prometheus.Gauge
	LocalWriters       prometheus.Gauge
	LocalReaders       prometheus.Gauge
	Matches            prometheus.Gauge
	SendRateBps        prometheus.Gauge

	HeartbeatsSent   prometheus.Counter
	AckNacksReceived prometheus.Counter
	Retransmits      *prometheus.CounterVec // label: kind = data|gap
	SamplesDropped   *prometheus.CounterVec // label: reason
	SamplesSent      prometheus.Counter

	RttSeconds prometheus.Gauge
}

// NewReporter constructs a Reporter with a fresh registry and every
// metric pre-registered, ready for a driver to call Set/Inc on.
func NewReporter() *Reporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Reporter{
		registry: reg,

		RemoteParticipants: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hdds_remote_participants",
			Help: "Number of remote participants currently known via SPDP.",
		}),
		LocalWriters: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hdds_local_writers",
			Help: "Number of writers registered on this participant.",
		}),
		LocalReaders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hdds_local_readers",
			Help: "Number of readers registered on this participant.",
		}),
		Matches: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hdds_matches",
			Help: "Number of confirmed RxO matches.",
		}),
		SendRateBps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hdds_send_rate_bps",
			Help: "Current AIMD-controlled shared send rate, in bytes per second.",
		}),
		HeartbeatsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "hdds_heartbeats_sent_total",
			Help: "Total HEARTBEAT submessages sent by reliable writers.",
		}),
		AckNacksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "hdds_acknacks_received_total",
			Help: "Total ACKNACK submessages received.",
		}),
		Retransmits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hdds_retransmits_total",
			Help: "Total retransmissions issued in response to ACKNACK, by kind.",
		}, []string{"kind"}),
		SamplesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hdds_samples_dropped_total",
			Help: "Total inbound samples dropped, by reason.",
		}, []string{"reason"}),
		SamplesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "hdds_samples_sent_total",
			Help: "Total user-data DATA submessages drained from a writer pacer onto the wire.",
		}),
		RttSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hdds_rtt_seconds",
			Help: "Smoothed round-trip time estimate, in seconds.",
		}),
	}
}

// Handler returns an http.Handler serving this Reporter's registry in the
// Prometheus exposition format, for callers to mount on their own mux.
func (r *Reporter) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
