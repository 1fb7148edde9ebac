// Package metrics exposes warehouse operation counters and the database
// row-estimate collector over a prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements warehouse.Hooks on top of a prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	mintRetries   *prometheus.CounterVec
	mintDuration  *prometheus.HistogramVec
	mintedTotal   *prometheus.CounterVec
	upsertsTotal  *prometheus.CounterVec
	upsertSeconds *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mintRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "specimenhub_mint_retries_total",
			Help: "Barcode collisions retried during identifier minting.",
		}, []string{"identifier_set"}),
		mintDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "specimenhub_mint_duration_seconds",
			Help:    "Wall time of a whole minting batch.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"identifier_set"}),
		mintedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "specimenhub_minted_identifiers_total",
			Help: "Identifiers successfully minted.",
		}, []string{"identifier_set"}),
		upsertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "specimenhub_sample_upserts_total",
			Help: "Sample upserts by outcome.",
		}, []string{"status"}),
		upsertSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "specimenhub_sample_upsert_duration_seconds",
			Help:    "Wall time of a single sample upsert.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.mintRetries,
		m.mintDuration,
		m.mintedTotal,
		m.upsertsTotal,
		m.upsertSeconds,
	)
	return m
}

// Register adds extra collectors, such as the DatabaseCollector, to the
// registry behind the /metrics handler.
func (m *Metrics) Register(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveMint(set string, n int, dur time.Duration) {
	m.mintedTotal.WithLabelValues(set).Add(float64(n))
	m.mintDuration.WithLabelValues(set).Observe(dur.Seconds())
}

func (m *Metrics) IncMintRetry(set string) {
	m.mintRetries.WithLabelValues(set).Inc()
}

func (m *Metrics) ObserveUpsert(status string, dur time.Duration) {
	m.upsertsTotal.WithLabelValues(status).Inc()
	m.upsertSeconds.WithLabelValues(status).Observe(dur.Seconds())
}
