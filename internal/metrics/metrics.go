// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records settlement and ledger metrics.
type Collector struct {
	payouts      *prometheus.CounterVec
	paidXym      prometheus.Counter
	settlements  *prometheus.CounterVec
	railLatency  prometheus.Histogram
	ledgerBuilds *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "touristlog_payouts_total",
			Help: "Per-recipient payout outcomes.",
		}, []string{"status"}),
		paidXym: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "touristlog_paid_xym_total",
			Help: "XYM transferred by successful payouts.",
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "touristlog_settlements_total",
			Help: "Settlement attempts by outcome.",
		}, []string{"outcome"}),
		railLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "touristlog_rail_transfer_seconds",
			Help:    "Latency of payment rail transfer calls.",
			Buckets: prometheus.DefBuckets,
		}),
		ledgerBuilds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "touristlog_ledger_build_seconds",
			Help:    "Time to build a ledger view.",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
	}

	reg.MustRegister(c.payouts, c.paidXym, c.settlements, c.railLatency, c.ledgerBuilds)
	return c
}

// RecordPayout counts one recipient outcome. amount is added only on success.
func (c *Collector) RecordPayout(status string, amount float64) {
	c.payouts.WithLabelValues(status).Inc()
	if status == "success" && amount > 0 {
		c.paidXym.Add(amount)
	}
}

func (c *Collector) RecordSettlement(outcome string) {
	c.settlements.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRailLatency(d time.Duration) {
	c.railLatency.Observe(d.Seconds())
}

func (c *Collector) ObserveLedgerBuild(view string, d time.Duration) {
	c.ledgerBuilds.WithLabelValues(view).Observe(d.Seconds())
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
