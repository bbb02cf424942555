// Package metrics exposes Prometheus metrics for the conductor server
// on a dedicated listener, separate from the ingestion API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conductor-telemetry/conductor/pkg/store"
)

// Collector registers and serves the conductor metric families.
type Collector struct {
	registry *prometheus.Registry

	registrations *prometheus.CounterVec
	emits         *prometheus.CounterVec
	rowsIngested  prometheus.Counter
}

// NewCollector builds a collector over the given store. The producer
// count is read from the store at scrape time.
func NewCollector(s store.Store) *Collector {
	registry := prometheus.NewRegistry()
	startTime := time.Now()

	c := &Collector{
		registry: registry,
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_registrations_total",
			Help: "Producer registration attempts by result code.",
		}, []string{"result"}),
		emits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_emits_total",
			Help: "Emit requests by result code.",
		}, []string{"result"}),
		rowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conductor_rows_ingested_total",
			Help: "Rows written to producer data tables.",
		}),
	}

	registry.MustRegister(c.registrations, c.emits, c.rowsIngested)
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "conductor_uptime_seconds",
		Help: "Time since the conductor server started.",
	}, func() float64 {
		return time.Since(startTime).Seconds()
	}))
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "conductor_producers_total",
		Help: "Number of registered producers.",
	}, func() float64 {
		producers, err := s.ListProducers()
		if err != nil {
			return 0
		}
		return float64(len(producers))
	}))
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "conductor_rows_stored_total",
		Help: "Rows across all producer data tables, counted at scrape time.",
	}, func() float64 {
		producers, err := s.ListProducers()
		if err != nil {
			return 0
		}
		var total int64
		for _, p := range producers {
			n, err := s.CountRows(p.UUID)
			if err != nil {
				continue
			}
			total += n
		}
		return float64(total)
	}))

	return c
}

// RecordRegistration counts a registration attempt by its result code.
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// RecordEmit counts an emit attempt by its result code.
func (c *Collector) RecordEmit(result string) {
	c.emits.WithLabelValues(result).Inc()
}

// RecordRowIngested counts one persisted row.
func (c *Collector) RecordRowIngested() {
	c.rowsIngested.Inc()
}

// Handler returns the Prometheus exposition handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
