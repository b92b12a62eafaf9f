// Package metrics define los collectors de Prometheus del registro.
// Viven en un paquete aparte para evitar ciclos entre cluster, coordinator y http.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RaftApplyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "policyreg_raft_apply_latency_ms",
		Help:    "Latencia de raft.Apply en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	RaftLeadershipChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policyreg_raft_leadership_changes_total",
		Help: "Cambios de rol a leader",
	})

	RaftLogSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "policyreg_raft_log_size_bytes",
		Help: "Tamaño en bytes del archivo de log/stable (BoltDB)",
	})

	// Mutations cuenta mutaciones procesadas por el coordinador.
	// outcome: acknowledged | not_found | already_exists | timeout | unavailable | error
	Mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyreg_mutations_total",
		Help: "Mutaciones procesadas por el coordinador por tipo y resultado",
	}, []string{"type", "outcome"})

	AckWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "policyreg_ack_wait_ms",
		Help:    "Tiempo desde la publicación hasta alcanzar quorum",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "policyreg_coordinator_queue_depth",
		Help: "Propuestas esperando en la cola del coordinador",
	})

	SnapshotVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "policyreg_snapshot_version",
		Help: "Versión del último snapshot aplicado en este nodo",
	})

	Policies = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "policyreg_policies",
		Help: "Cantidad de policies en el último snapshot aplicado",
	})

	// HTTP
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	HTTPInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests en vuelo",
	})
)

// Register registra todos los collectors en reg (o el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		RaftApplyLatency, RaftLeadershipChanges, RaftLogSizeBytes,
		Mutations, AckWait, QueueDepth, SnapshotVersion, Policies,
		HTTPRequests, HTTPRequestDuration, HTTPInflight,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
