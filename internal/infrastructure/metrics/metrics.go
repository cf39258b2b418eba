// Package metrics expone en Prometheus el comportamiento del motor WAC y del API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

var _ inventory.Metrics = (*Metrics)(nil)

const namespace = "wac"

// Metrics registro propio (no el global) con las series del motor y del API.
type Metrics struct {
	registry *prometheus.Registry

	MovementsApplied  *prometheus.CounterVec
	MovementsRejected *prometheus.CounterVec
	LockWaitSeconds   *prometheus.HistogramVec
	ReplayDivergences prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New crea el registro y sus colectores.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.MovementsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_applied_total",
			Help:      "Movimientos aplicados por tipo",
		},
		[]string{"type"},
	)
	m.MovementsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_rejected_total",
			Help:      "Movimientos rechazados por tipo y motivo",
		},
		[]string{"type", "reason"},
	)
	m.LockWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scope_lock_wait_seconds",
			Help:      "Espera por el lock de un scope",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"acquired"},
	)
	m.ReplayDivergences = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replay_divergences_total",
		Help:      "Scopes cuyo estado cacheado no coincide con el replay del ledger",
	})
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total de peticiones HTTP",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duración de las peticiones HTTP",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(
		m.MovementsApplied,
		m.MovementsRejected,
		m.LockWaitSeconds,
		m.ReplayDivergences,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Registry registro subyacente (tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler handler HTTP de exposición.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) MovementApplied(t entity.MovementType) {
	m.MovementsApplied.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) MovementRejected(t entity.MovementType, reason string) {
	m.MovementsRejected.WithLabelValues(string(t), reason).Inc()
}

func (m *Metrics) LockWait(d time.Duration, acquired bool) {
	m.LockWaitSeconds.WithLabelValues(strconv.FormatBool(acquired)).Observe(d.Seconds())
}

func (m *Metrics) ReplayDivergence() { m.ReplayDivergences.Inc() }

// ObserveHTTP registra una petición; path debe ser la ruta del router, no la URL cruda.
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
