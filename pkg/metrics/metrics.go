// Package metrics exports route processing counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/newtron-network/fpmsyncd/pkg/util"
	"github.com/newtron-network/fpmsyncd/pkg/warmstart"
)

const namespace = "fpmsyncd"

// HandlerTimeout bounds a single scrape.
const HandlerTimeout = 30 * time.Second

// Metrics holds the daemon's collectors on a private registry. It
// implements the route syncer's observer.
type Metrics struct {
	registry *prometheus.Registry

	processed  *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	acks       *prometheus.CounterVec
	reconciled *prometheus.CounterVec
	warmState  prometheus.Gauge
	peer       prometheus.Gauge
}

// New creates and registers the collectors, along with the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_processed_total",
			Help:      "Total number of route messages written to APPL_DB, by route family.",
		}, []string{"family"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_dropped_total",
			Help:      "Total number of route messages dropped, by route family and reason.",
		}, []string{"family", "reason"}),
		acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offload_acks_total",
			Help:      "Total number of offload acknowledgments, by result.",
		}, []string{"result"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warm_restart_reconciled_entries_total",
			Help:      "Entries touched by warm-restart reconciliation, by table and operation.",
		}, []string{"table", "op"}),
		warmState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warm_restart_state",
			Help:      "Warm-restart phase: 0 idle, 1 initialized, 2 restored, 3 reconciled.",
		}),
		peer: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fpm_peer_connected",
			Help:      "Whether the routing stack is connected over FPM.",
		}),
	}
	m.registry.MustRegister(
		m.processed, m.dropped, m.acks, m.reconciled, m.warmState, m.peer,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RouteProcessed counts a route written for family.
func (m *Metrics) RouteProcessed(family string) {
	m.processed.WithLabelValues(family).Inc()
}

// RouteDropped counts a route of family dropped for reason.
func (m *Metrics) RouteDropped(family, reason string) {
	m.dropped.WithLabelValues(family, reason).Inc()
}

// OffloadAck counts an acknowledgment attempt.
func (m *Metrics) OffloadAck(ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.acks.WithLabelValues(result).Inc()
}

// SetWarmState records the current warm-restart phase.
func (m *Metrics) SetWarmState(s warmstart.State) {
	m.warmState.Set(float64(s))
}

// Reconciled adds the outcome of reconciling table.
func (m *Metrics) Reconciled(table string, r warmstart.Result) {
	m.reconciled.WithLabelValues(table, "added").Add(float64(r.Added))
	m.reconciled.WithLabelValues(table, "updated").Add(float64(r.Updated))
	m.reconciled.WithLabelValues(table, "deleted").Add(float64(r.Deleted))
	m.reconciled.WithLabelValues(table, "unchanged").Add(float64(r.Unchanged))
}

// SetPeerConnected records whether an FPM peer is attached.
func (m *Metrics) SetPeerConnected(up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.peer.Set(v)
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		m.registry,
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Timeout: HandlerTimeout}),
	)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	util.WithField("addr", addr).Info("exporting prometheus metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
